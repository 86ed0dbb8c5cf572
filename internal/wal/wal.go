// Package wal implements the per-partition write-ahead log the core uses to
// make temp-file-to-committed-file promotion idempotently replayable. Each
// append writes one line; apply() replays the most recent complete
// begin/end bracket, performing the storage rename each entry records.
package wal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BeginMarker and EndMarker bracket one rotation epoch's entries in the log.
// The core's appended set is seeded and checked against these two literal
// strings (spec.md §3, §4.4).
const (
	BeginMarker = "__wal_begin__"
	EndMarker   = "__wal_end__"
)

// CommitFunc performs the atomic storage rename Apply replays. Wiring the
// rename in at construction, rather than importing the storage package
// here, keeps wal free of a dependency on storage — storage depends on wal,
// not the reverse.
type CommitFunc func(src, dst string) error

// FileWAL is a single append-only log file per source partition.
type FileWAL struct {
	path     string
	commit   CommitFunc
	file     *os.File
	instance string
}

// Open opens (creating if absent) the log file at path, appending new
// entries to its tail. commit is invoked once per entry during Apply.
func Open(path string, commit CommitFunc) (*FileWAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("wal: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open log file: %w", err)
	}
	return &FileWAL{path: path, commit: commit, file: f, instance: uuid.NewString()}, nil
}

func (w *FileWAL) GetLogFile() string {
	return w.path
}

// InstanceID identifies this particular open of the log file, so log lines
// emitted around Apply/Truncate calls can be correlated to one process
// lifetime even when the underlying path is reused across restarts.
func (w *FileWAL) InstanceID() string {
	return w.instance
}

func (w *FileWAL) BeginMarker() string { return BeginMarker }
func (w *FileWAL) EndMarker() string   { return EndMarker }

// Append writes one entry. A marker entry passes its marker string as key
// with an empty value; a rename entry passes the temp path as key and the
// committed path as value.
func (w *FileWAL) Append(key, value string) error {
	line := encodeLine(key, value)
	if _, err := w.file.WriteString(line); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	return w.file.Sync()
}

// Apply replays the last complete begin/end bracket in the log, calling
// commit(temp, committed) for every rename entry inside it. A log with no
// trailing end marker after its last begin marker is treated as an
// incomplete bracket — a no-op, per spec.md §4.4 — so an interrupted
// rotation is retried from its temp files on the next write() instead.
func (w *FileWAL) Apply() error {
	entries, err := w.readAll()
	if err != nil {
		return fmt.Errorf("wal: apply: read log: %w", err)
	}

	beginIdx := -1
	endIdx := -1
	for i, e := range entries {
		switch e.key {
		case BeginMarker:
			beginIdx = i
			endIdx = -1
		case EndMarker:
			if beginIdx >= 0 {
				endIdx = i
			}
		}
	}
	if beginIdx < 0 || endIdx < 0 {
		return nil
	}

	for _, e := range entries[beginIdx+1 : endIdx] {
		if e.key == BeginMarker || e.key == EndMarker {
			continue
		}
		if err := w.commit(e.key, e.value); err != nil {
			return fmt.Errorf("wal: apply: commit %q -> %q: %w", e.key, e.value, err)
		}
	}
	return nil
}

// Truncate discards all entries, typically called right after a successful
// Apply so the log starts empty for the next rotation epoch.
func (w *FileWAL) Truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return fmt.Errorf("wal: truncate: seek: %w", err)
	}
	return nil
}

func (w *FileWAL) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

type entry struct {
	key   string
	value string
}

func (w *FileWAL) readAll() ([]entry, error) {
	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}
	var entries []entry
	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		k, v, ok := decodeLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry{key: k, value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if _, err := w.file.Seek(0, 2); err != nil {
		return nil, err
	}
	return entries, nil
}

const fieldSep = "\t"

func encodeLine(key, value string) string {
	return key + fieldSep + value + "\n"
}

func decodeLine(line string) (key, value string, ok bool) {
	parts := strings.SplitN(line, fieldSep, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// CloseErrors joins the per-partition errors collected while closing every
// writer's WAL, so the caller can surface one error after every partition
// has been attempted, per spec.md §7.
func CloseErrors(errs []error) error {
	return errors.Join(errs...)
}
