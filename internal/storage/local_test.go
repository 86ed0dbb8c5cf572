package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFilesystemCommit(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "partitionwriter-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalFilesystem(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalFilesystem: %v", err)
	}

	w, err := store.Create("+tmp/topic+0+part-0001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if ok, _ := store.Exists("topic+0+00000000000000000000+00000000000000000009.bin"); ok {
		t.Fatal("committed path should not exist before Commit")
	}

	if err := store.Commit("+tmp/topic+0+part-0001", "topic+0+00000000000000000000+00000000000000000009.bin"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ok, err := store.Exists("topic+0+00000000000000000000+00000000000000000009.bin")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("committed path should exist after Commit")
	}

	if ok, _ := store.Exists("+tmp/topic+0+part-0001"); ok {
		t.Fatal("temp path should be gone after Commit")
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "topic+0+00000000000000000000+00000000000000000009.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("committed contents = %q, want %q", data, "payload")
	}
}

func TestLocalFilesystemDeleteMissingIsNotError(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "partitionwriter-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalFilesystem(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalFilesystem: %v", err)
	}
	if err := store.Delete("does/not/exist"); err != nil {
		t.Fatalf("Delete of missing path should be a no-op, got %v", err)
	}
}

func TestLocalFilesystemWALRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "partitionwriter-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := NewLocalFilesystem(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalFilesystem: %v", err)
	}

	w, err := store.Create("+tmp/t+0+part-0001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := io.WriteString(w, "data"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	log, err := store.WAL(filepath.Join(tmpDir, "logs"), "t", 0)
	if err != nil {
		t.Fatalf("WAL: %v", err)
	}
	if err := log.Append(log.BeginMarker(), ""); err != nil {
		t.Fatalf("Append begin: %v", err)
	}
	if err := log.Append("+tmp/t+0+part-0001", "t+0+00000000000000000000+00000000000000000000.bin"); err != nil {
		t.Fatalf("Append entry: %v", err)
	}
	if err := log.Append(log.EndMarker(), ""); err != nil {
		t.Fatalf("Append end: %v", err)
	}

	if err := log.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	ok, err := store.Exists("t+0+00000000000000000000+00000000000000000000.bin")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("Apply should have committed the temp file")
	}

	// Apply is idempotent: replaying the same bracket again must not error
	// even though the rename's source no longer exists.
	if err := log.Apply(); err != nil {
		t.Fatalf("second Apply should be a no-op, got: %v", err)
	}

	if err := log.Truncate(); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
