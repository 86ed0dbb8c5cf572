package sinkwriter

import (
	"fmt"

	"github.com/flowsink/partitionwriter/internal/partition"
	"github.com/flowsink/partitionwriter/internal/storage"
)

// commitEngine promotes temp files to committed files and advances offset
// bookkeeping, per spec.md §4.5.
type commitEngine struct {
	store       storage.Storage
	partitioner partition.Partitioner
	topic       string
	topicsDir   string
	sourcePart  int32
	padWidth    int
	ext         string
}

func newCommitEngine(store storage.Storage, partitioner partition.Partitioner, topic, topicsDir string, sourcePart int32, padWidth int, ext string) *commitEngine {
	return &commitEngine{
		store:       store,
		partitioner: partitioner,
		topic:       topic,
		topicsDir:   topicsDir,
		sourcePart:  sourcePart,
		padWidth:    padWidth,
		ext:         ext,
	}
}

// committedPath computes the same committed filename the WAL coordinator
// recorded for encodedPartition, so commit() and the WAL entry agree
// byte-for-byte.
func (e *commitEngine) committedPath(encodedPartition string, startOffset, endOffset int64) string {
	directory := e.topicsDir + "/" + e.partitioner.GeneratePartitionedPath(e.topic, encodedPartition)
	name := committedFilename(e.topic, e.sourcePart, startOffset, endOffset, e.padWidth, e.ext)
	return directory + "/" + name
}

// commit promotes every registry entry with a recorded start offset to its
// committed file, then clears that entry's start/end offsets. The caller
// advances the writer's own offset/recordCounter after commit returns
// successfully, per the ordering spec.md §4.5 requires.
func (e *commitEngine) commit(reg *registry) error {
	for _, p := range reg.orderedPartitions() {
		start := reg.startOffsets[p]
		end := reg.endOffsets[p]
		ow, ok := reg.writers[p]
		if !ok {
			continue
		}
		dst := e.committedPath(p, start, end)
		if err := e.store.Commit(ow.tempPath, dst); err != nil {
			return fmt.Errorf("commitengine: commit %s -> %s: %w", ow.tempPath, dst, err)
		}
		delete(reg.startOffsets, p)
		delete(reg.endOffsets, p)
	}
	return nil
}
