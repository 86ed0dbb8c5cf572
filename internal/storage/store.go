// Package storage abstracts the directory-create/exists/commit/delete
// primitives the per-partition writer needs, plus WAL construction scoped
// to one (topic, partition). It is the Storage external collaborator of
// spec.md §6.
package storage

import (
	"fmt"
)

// WAL is the subset of wal.FileWAL the core depends on. Defining it here,
// rather than importing a type from package wal, keeps the dependency
// one-directional: storage constructs a *wal.FileWAL and hands it back as
// this interface.
type WAL interface {
	Append(key, value string) error
	Apply() error
	Truncate() error
	Close() error
	GetLogFile() string
	BeginMarker() string
	EndMarker() string
}

// Storage is the directory-level primitive set the writer's commit engine
// and writer registry depend on. Paths are relative to the store's root;
// URL() reports the root itself.
type Storage interface {
	// URL reports the root this store is rooted at, e.g. "file:///data" or
	// "gs://bucket/prefix".
	URL() string

	// Exists reports whether path is present.
	Exists(path string) (bool, error)

	// Create opens path for writing, creating parent directories as needed.
	// The caller closes the returned writer.
	Create(path string) (WriteCloser, error)

	// Commit promotes src to dst — an atomic rename for a filesystem store,
	// a non-atomic copy then delete for an object store.
	Commit(src, dst string) error

	// Delete removes path. Deleting an absent path is not an error.
	Delete(path string) error

	// List returns every committed path under dir, recursively, for
	// recovery's directory scan (spec.md §4.1 step 4).
	List(dir string) ([]string, error)

	// WAL returns the write-ahead log for one (topic, partition), rooted
	// under logsDir as "<logsDir>/<topic>/<partition>/log" per spec.md §6.
	WAL(logsDir, topic string, partition int32) (WAL, error)
}

// WriteCloser is the writer Create returns. It is a narrow alias of
// io.WriteCloser kept local so callers need not import io just to satisfy
// this interface.
type WriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// Config selects and configures a storage backend.
type Config struct {
	Backend string // "local" | "blob"

	// Local filesystem backend.
	LocalDir string

	// Blob backend: any gocloud.dev/blob URL, e.g. "gs://bucket/prefix" or
	// "s3://bucket?region=us-east-1".
	BlobURL string
}

// New constructs a Storage backend from cfg.
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("storage: LocalDir required for local backend")
		}
		return NewLocalFilesystem(cfg.LocalDir)
	case "blob":
		if cfg.BlobURL == "" {
			return nil, fmt.Errorf("storage: BlobURL required for blob backend")
		}
		return NewBlob(cfg.BlobURL)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

func walLogPath(logsDir, topic string, partition int32) string {
	return fmt.Sprintf("%s/%s/%d/log", logsDir, topic, partition)
}
