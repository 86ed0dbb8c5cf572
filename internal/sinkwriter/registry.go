package sinkwriter

import (
	"fmt"
	"sort"

	"github.com/flowsink/partitionwriter/internal/catalog"
	"github.com/flowsink/partitionwriter/internal/partition"
	"github.com/flowsink/partitionwriter/internal/record"
	"github.com/flowsink/partitionwriter/internal/schema"
	"github.com/flowsink/partitionwriter/internal/storage"
	"github.com/flowsink/partitionwriter/internal/writerprovider"
)

// openWriter pairs a RecordWriter with the temp path it is writing to.
type openWriter struct {
	tempPath string
	writer   writerprovider.RecordWriter
}

// registry is the writer registry plus the TempFile table of spec.md §3:
// a map from encodedPartition to its open writer and temp path, plus the
// StartOffsets/EndOffsets/HivePartitions bookkeeping the commit engine and
// catalog side effect depend on.
type registry struct {
	store       storage.Storage
	provider    writerprovider.Provider
	partitioner partition.Partitioner
	cat         catalog.HiveService
	hiveEnabled bool
	topic       string
	topicsDir   string

	writers        map[string]*openWriter
	startOffsets   map[string]int64
	endOffsets     map[string]int64
	hivePartitions map[string]bool

	// opened records every encodedPartition with a writer created this
	// epoch. close/append/commit iterate sorted(opened), the
	// spec.md §9 open question (c) resolution, making ordering
	// deterministic independent of arrival order.
	opened map[string]bool

	epochSeq int64
}

func newRegistry(store storage.Storage, provider writerprovider.Provider, partitioner partition.Partitioner, cat catalog.HiveService, hiveEnabled bool, topic, topicsDir string) *registry {
	return &registry{
		store:          store,
		provider:       provider,
		partitioner:    partitioner,
		cat:            cat,
		hiveEnabled:    hiveEnabled,
		topic:          topic,
		topicsDir:      topicsDir,
		writers:        make(map[string]*openWriter),
		startOffsets:   make(map[string]int64),
		endOffsets:     make(map[string]int64),
		hivePartitions: make(map[string]bool),
		opened:         make(map[string]bool),
	}
}

// getWriter returns the open writer for encodedPartition, creating one (and
// its temp file) on first use, and announcing the partition to the catalog
// if hive integration is enabled and this is the first time this encoded
// partition has been seen (spec.md §4.6).
func (r *registry) getWriter(rec *record.Record, encodedPartition string, currentSchema *schema.Schema) (*openWriter, error) {
	if ow, ok := r.writers[encodedPartition]; ok {
		return ow, nil
	}

	directory := r.topicsDir + "/" + r.partitioner.GeneratePartitionedPath(r.topic, encodedPartition)
	ext := r.provider.GetExtension()
	path := tempFilePath(directory, encodedPartition, r.epochSeq, ext)

	dst, err := r.store.Create(path)
	if err != nil {
		return nil, fmt.Errorf("registry: create temp file %s: %w", path, err)
	}
	w, err := r.provider.GetRecordWriter(dst, rec)
	if err != nil {
		dst.Close()
		return nil, fmt.Errorf("registry: get record writer for %s: %w", path, err)
	}

	ow := &openWriter{tempPath: path, writer: w}
	r.writers[encodedPartition] = ow
	r.opened[encodedPartition] = true

	if r.hiveEnabled && !r.hivePartitions[encodedPartition] {
		if err := r.cat.AddHivePartition(rec, currentSchema); err != nil {
			return nil, &FatalError{Op: "addHivePartition", Err: fmt.Errorf("registry: add hive partition %s: %w", encodedPartition, err)}
		}
		r.hivePartitions[encodedPartition] = true
	}

	return ow, nil
}

// recordWrite updates StartOffsets/EndOffsets after one record has been
// written to encodedPartition, per the invariants of spec.md §3.
func (r *registry) recordWrite(encodedPartition string, offset int64) {
	if _, ok := r.startOffsets[encodedPartition]; !ok {
		r.startOffsets[encodedPartition] = offset
	}
	r.endOffsets[encodedPartition] = offset
}

// orderedPartitions returns encoded partitions with a recorded start
// offset, sorted by encodedPartition.
func (r *registry) orderedPartitions() []string {
	out := make([]string, 0, len(r.opened))
	for p := range r.opened {
		if _, ok := r.startOffsets[p]; ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// closeAll flushes and closes every open writer, returning the first error
// encountered but attempting to close every writer regardless (the core
// treats data errors on close as logged-and-swallowed per-partition, but
// here we surface the first one so the caller can decide; sinkwriter's
// write loop treats a closeAll failure as a transient error and retries
// the rotation from SHOULD_ROTATE on the next write()).
func (r *registry) closeAll() error {
	keys := make([]string, 0, len(r.opened))
	for p := range r.opened {
		keys = append(keys, p)
	}
	sort.Strings(keys)

	var firstErr error
	for _, p := range keys {
		ow, ok := r.writers[p]
		if !ok {
			continue
		}
		if err := ow.writer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("registry: close writer for %s: %w", p, err)
		}
	}
	return firstErr
}

// reset clears per-epoch state after a successful commit, per spec.md §4.5.
func (r *registry) reset() {
	r.writers = make(map[string]*openWriter)
	r.startOffsets = make(map[string]int64)
	r.endOffsets = make(map[string]int64)
	r.opened = make(map[string]bool)
	r.epochSeq++
}
