package sinkwriter

import "testing"

func TestWALCoordinatorGuardsDuplicateAppends(t *testing.T) {
	store := newMemStore()
	log, err := store.WAL("logs", "orders", 0)
	if err != nil {
		t.Fatalf("wal: %v", err)
	}
	coord := newWALCoordinator(log)

	if err := coord.appendBegin(); err != nil {
		t.Fatalf("appendBegin: %v", err)
	}
	if err := coord.appendBegin(); err != nil {
		t.Fatalf("second appendBegin should be a guarded no-op, got error: %v", err)
	}
	if err := coord.appendEntry("tmp/a", "committed/a"); err != nil {
		t.Fatalf("appendEntry: %v", err)
	}
	if err := coord.appendEntry("tmp/a", "committed/a"); err != nil {
		t.Fatalf("duplicate appendEntry should be a guarded no-op, got error: %v", err)
	}
	if coord.hasBracket() {
		t.Fatalf("hasBracket must be false before the end marker is appended")
	}
	if err := coord.appendEnd(); err != nil {
		t.Fatalf("appendEnd: %v", err)
	}
	if !coord.hasBracket() {
		t.Fatalf("hasBracket must be true once both markers are appended")
	}

	mw := log.(*memWAL)
	if len(mw.entries) != 3 {
		t.Fatalf("expected exactly 3 entries written (begin, one entry, end), got %d", len(mw.entries))
	}
}

func TestWALCoordinatorResetClearsAppendedSet(t *testing.T) {
	store := newMemStore()
	log, _ := store.WAL("logs", "orders", 0)
	coord := newWALCoordinator(log)
	coord.appendBegin()
	coord.appendEnd()
	if !coord.hasBracket() {
		t.Fatalf("expected a complete bracket before reset")
	}
	coord.reset()
	if coord.hasBracket() {
		t.Fatalf("hasBracket must be false immediately after reset")
	}
}

func TestCommitEngineCommitsAndClearsOffsets(t *testing.T) {
	store := newMemStore()
	store.files["topics/orders/x/+tmp/x-0.bin"] = []byte("payload")

	partitioner := singlePartitioner{key: "x"}
	engine := newCommitEngine(store, partitioner, "orders", "topics", 0, 20, "bin")

	reg := newRegistry(store, memProvider{}, partitioner, nil, false, "orders", "topics")
	reg.writers["x"] = &openWriter{tempPath: "topics/orders/x/+tmp/x-0.bin"}
	reg.startOffsets["x"] = 10
	reg.endOffsets["x"] = 12
	reg.opened["x"] = true

	if err := engine.commit(reg); err != nil {
		t.Fatalf("commit: %v", err)
	}

	want := "topics/orders/x/orders+0+00000000000000000010+00000000000000000012.bin"
	if ok, _ := store.Exists(want); !ok {
		t.Fatalf("expected committed file %s to exist", want)
	}
	if _, ok := reg.startOffsets["x"]; ok {
		t.Fatalf("startOffsets entry for committed partition must be cleared")
	}
	if _, ok := reg.endOffsets["x"]; ok {
		t.Fatalf("endOffsets entry for committed partition must be cleared")
	}
}
