package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/flowsink/partitionwriter/internal/wal"
)

// Blob implements Storage against any gocloud.dev/blob-backed bucket —
// GCS, S3, and S3-compatible endpoints (B2, R2, MinIO) all resolve through
// the driver registered for the URL's scheme. Object stores have no rename
// primitive, so Commit copies then deletes the source key.
type Blob struct {
	bucket *blob.Bucket
	url    string
}

// NewBlob opens the bucket addressed by bucketURL, e.g. "gs://bucket/prefix"
// or "s3://bucket?region=us-east-1&endpoint=https://minio.local".
func NewBlob(bucketURL string) (*Blob, error) {
	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("storage: open bucket %s: %w", bucketURL, err)
	}
	return &Blob{bucket: bucket, url: bucketURL}, nil
}

func (s *Blob) URL() string {
	return s.url
}

func (s *Blob) Exists(path string) (bool, error) {
	ok, err := s.bucket.Exists(context.Background(), path)
	if err != nil {
		return false, fmt.Errorf("storage: exists %s: %w", path, err)
	}
	return ok, nil
}

func (s *Blob) Create(path string) (WriteCloser, error) {
	w, err := s.bucket.NewWriter(context.Background(), path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", path, err)
	}
	return w, nil
}

// Commit copies src to dst then deletes src. Object stores have no atomic
// rename; a crash between copy and delete leaves src as an orphaned key,
// which is harmless — recovery never reads by listing temp keys, only by
// replaying the WAL, and the WAL only ever names src once per epoch. A src
// that is already gone while dst exists is treated as success, so WAL
// replay of an already-completed commit is a no-op.
func (s *Blob) Commit(src, dst string) error {
	ctx := context.Background()
	if err := s.copyObject(ctx, src, dst); err != nil {
		if srcOK, _ := s.bucket.Exists(ctx, src); !srcOK {
			if dstOK, _ := s.bucket.Exists(ctx, dst); dstOK {
				return nil
			}
		}
		return fmt.Errorf("storage: commit %s -> %s: %w", src, dst, err)
	}
	if err := s.bucket.Delete(ctx, src); err != nil && !strings.Contains(err.Error(), "no such") {
		return fmt.Errorf("storage: commit %s -> %s: delete source: %w", src, dst, err)
	}
	return nil
}

func (s *Blob) copyObject(ctx context.Context, srcKey, dstKey string) error {
	r, err := s.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	w, err := s.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}
	return w.Close()
}

func (s *Blob) Delete(path string) error {
	if err := s.bucket.Delete(context.Background(), path); err != nil {
		if strings.Contains(err.Error(), "no such") {
			return nil
		}
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// List returns every key with prefix dir, skipping "+tmp" entries so
// recovery's scan only ever sees committed files.
func (s *Blob) List(dir string) ([]string, error) {
	ctx := context.Background()
	prefix := dir
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", dir, err)
		}
		if obj.IsDir || strings.Contains(obj.Key, "/+tmp/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// WAL opens the log object for (topic, partition). Appends go through a
// read-modify-write of the whole object since no blob driver offers
// seek/append semantics directly; this is acceptable because the log's
// traffic is low — a handful of entries per rotation epoch, not per record.
func (s *Blob) WAL(logsDir, topic string, partition int32) (WAL, error) {
	return &blobWAL{
		bucket: s.bucket,
		key:    walLogPath(logsDir, topic, partition),
		commit: s.Commit,
	}, nil
}

func (s *Blob) Close() error {
	if s.bucket == nil {
		return nil
	}
	return s.bucket.Close()
}

// blobWAL implements WAL by keeping the log object's full contents in
// memory between calls, re-uploading it on every mutation.
type blobWAL struct {
	bucket *blob.Bucket
	key    string
	commit wal.CommitFunc
	lines  []string
	loaded bool
}

func (w *blobWAL) load() error {
	if w.loaded {
		return nil
	}
	ctx := context.Background()
	r, err := w.bucket.NewReader(ctx, w.key, nil)
	if err != nil {
		w.loaded = true
		w.lines = nil
		return nil // missing log object means an empty log
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("wal: read %s: %w", w.key, err)
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line != "" {
			w.lines = append(w.lines, line)
		}
	}
	w.loaded = true
	return nil
}

func (w *blobWAL) flush() error {
	ctx := context.Background()
	wr, err := w.bucket.NewWriter(ctx, w.key, nil)
	if err != nil {
		return fmt.Errorf("wal: open writer for %s: %w", w.key, err)
	}
	var buf bytes.Buffer
	for _, line := range w.lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if _, err := wr.Write(buf.Bytes()); err != nil {
		wr.Close()
		return fmt.Errorf("wal: write %s: %w", w.key, err)
	}
	return wr.Close()
}

func (w *blobWAL) Append(key, value string) error {
	if err := w.load(); err != nil {
		return err
	}
	w.lines = append(w.lines, key+"\t"+value)
	return w.flush()
}

func (w *blobWAL) Apply() error {
	if err := w.load(); err != nil {
		return err
	}
	beginIdx, endIdx := -1, -1
	for i, line := range w.lines {
		k, _, _ := strings.Cut(line, "\t")
		switch k {
		case wal.BeginMarker:
			beginIdx, endIdx = i, -1
		case wal.EndMarker:
			if beginIdx >= 0 {
				endIdx = i
			}
		}
	}
	if beginIdx < 0 || endIdx < 0 {
		return nil
	}
	for _, line := range w.lines[beginIdx+1 : endIdx] {
		k, v, ok := strings.Cut(line, "\t")
		if !ok || k == wal.BeginMarker || k == wal.EndMarker {
			continue
		}
		if err := w.commit(k, v); err != nil {
			return fmt.Errorf("wal: apply: commit %q -> %q: %w", k, v, err)
		}
	}
	return nil
}

func (w *blobWAL) Truncate() error {
	w.lines = nil
	w.loaded = true
	return w.flush()
}

func (w *blobWAL) Close() error {
	return nil
}

func (w *blobWAL) GetLogFile() string {
	return w.key
}

func (w *blobWAL) BeginMarker() string { return wal.BeginMarker }
func (w *blobWAL) EndMarker() string   { return wal.EndMarker }
