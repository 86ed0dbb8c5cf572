package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowsink/partitionwriter/internal/wal"
)

// LocalFilesystem implements Storage against a local directory tree, using
// temp-file-then-rename for Commit so promotion is atomic within one
// filesystem.
type LocalFilesystem struct {
	baseDir string
}

// NewLocalFilesystem roots a Storage at baseDir, creating it if absent.
func NewLocalFilesystem(baseDir string) (*LocalFilesystem, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base directory %s: %w", baseDir, err)
	}
	return &LocalFilesystem{baseDir: baseDir}, nil
}

func (s *LocalFilesystem) URL() string {
	return "file://" + s.baseDir
}

func (s *LocalFilesystem) abs(path string) string {
	return filepath.Join(s.baseDir, path)
}

func (s *LocalFilesystem) Exists(path string) (bool, error) {
	_, err := os.Stat(s.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalFilesystem) Create(path string) (WriteCloser, error) {
	abs := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory for %s: %w", path, err)
	}
	f, err := os.Create(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", path, err)
	}
	return f, nil
}

// Commit renames src to dst, creating dst's parent directory first. Both
// paths are relative to baseDir. A src that is already gone while dst
// already exists is treated as success rather than an error: it means this
// exact rename already completed in an earlier attempt (e.g. the process
// crashed after Commit but before the WAL was truncated), and WAL replay
// must be able to retry it idempotently.
func (s *LocalFilesystem) Commit(src, dst string) error {
	absDst := s.abs(dst)
	if err := os.MkdirAll(filepath.Dir(absDst), 0o755); err != nil {
		return fmt.Errorf("storage: create directory for %s: %w", dst, err)
	}
	if err := os.Rename(s.abs(src), absDst); err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Stat(absDst); statErr == nil {
				return nil
			}
		}
		return fmt.Errorf("storage: commit %s -> %s: %w", src, dst, err)
	}
	return nil
}

func (s *LocalFilesystem) Delete(path string) error {
	if err := os.Remove(s.abs(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// List returns every regular file under dir, recursively, relative to
// baseDir — matching the flat-prefix listing semantics of an object store
// so recovery's scan behaves identically on both backends. Entries under a
// "+tmp" directory are skipped; those are never committed files.
func (s *LocalFilesystem) List(dir string) ([]string, error) {
	root := s.abs(dir)
	var names []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "+tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return names, nil
}

// WAL opens (or creates) the log file for (topic, partition) under logsDir,
// wiring its CommitFunc back to this store's own Commit so replay performs
// the identical rename primitive a live commit would have used. Both src
// and dst recorded in the log are store-relative paths.
func (s *LocalFilesystem) WAL(logsDir, topic string, partition int32) (WAL, error) {
	logPath := walLogPath(logsDir, topic, partition)
	return wal.Open(logPath, s.Commit)
}
