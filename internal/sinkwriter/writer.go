// Package sinkwriter implements the per-partition sink worker: the state
// machine that drives recovery, buffering, schema-change handling,
// rotation, temp-file promotion via WAL, and offset management for one
// (topic, source partition) pair.
package sinkwriter

import (
	"errors"
	"fmt"
	"time"

	"github.com/flowsink/partitionwriter/internal/catalog"
	"github.com/flowsink/partitionwriter/internal/hosttask"
	"github.com/flowsink/partitionwriter/internal/partition"
	"github.com/flowsink/partitionwriter/internal/record"
	"github.com/flowsink/partitionwriter/internal/schema"
	"github.com/flowsink/partitionwriter/internal/storage"
	"github.com/flowsink/partitionwriter/internal/timestamp"
	"github.com/flowsink/partitionwriter/internal/writerprovider"
)

// Config captures the immutable construction-time configuration of one
// PartitionWriter, corresponding to spec.md §6's recognized options.
type Config struct {
	Topic           string
	SourcePartition int32

	TopicsDir string
	LogsDir   string

	FlushSize                int
	RotateIntervalMs         int64
	RotateScheduleIntervalMs int64
	Timezone                 *time.Location

	RetryBackoffMs       int64
	FilenameZeroPadWidth int
	HiveIntegration      bool
	MultiSchemaSupport   bool

	Store       storage.Storage
	Provider    writerprovider.Provider
	Partitioner partition.Partitioner
	Extractor   timestamp.Extractor
	Catalog     catalog.HiveService
	Host        hosttask.Context
	Tracker     schema.Tracker
	Policy      schema.CompatibilityPolicy
}

// PartitionWriter is the core state machine of one (topic, source
// partition) pair (spec.md §3).
type PartitionWriter struct {
	cfg Config

	store       storage.Storage
	walLog      storage.WAL
	provider    writerprovider.Provider
	partitioner partition.Partitioner
	extractor   timestamp.Extractor
	cat         catalog.HiveService
	host        hosttask.Context
	schemaAdapt *schemaAdaptor

	registry     *registry
	commitEngine *commitEngine
	walCoord     *walCoordinator
	rotation     *rotationEvaluator

	buf           buffer
	state         State
	offset        int64
	recordCounter int
	retry         *retryGate
	wallClock     bool
}

// New constructs a PartitionWriter. Its only I/O is opening the WAL through
// cfg.Store; recovery runs lazily on the first Write call.
func New(cfg Config) (*PartitionWriter, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.NoopCatalog{}
	}
	if cfg.Policy == nil {
		cfg.Policy = schema.NoneCompatibility{}
	}
	if cfg.Tracker == nil {
		cfg.Tracker = schema.NewMemoryTracker()
	}
	if cfg.FilenameZeroPadWidth <= 0 {
		cfg.FilenameZeroPadWidth = 20
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}

	walLog, err := cfg.Store.WAL(cfg.LogsDir, cfg.Topic, cfg.SourcePartition)
	if err != nil {
		return nil, fmt.Errorf("sinkwriter: open wal: %w", err)
	}

	partitioner := cfg.Partitioner
	if cfg.MultiSchemaSupport {
		partitioner = partition.NewMultiSchemaPartitioner(partitioner)
	}

	_, wallClock := cfg.Extractor.(timestamp.SupportsWallClock)

	w := &PartitionWriter{
		cfg:         cfg,
		store:       cfg.Store,
		walLog:      walLog,
		provider:    cfg.Provider,
		partitioner: partitioner,
		extractor:   cfg.Extractor,
		cat:         cfg.Catalog,
		host:        cfg.Host,
		schemaAdapt: newSchemaAdaptor(cfg.Tracker, cfg.Policy, cfg.MultiSchemaSupport),

		registry:     newRegistry(cfg.Store, cfg.Provider, partitioner, cfg.Catalog, cfg.HiveIntegration, cfg.Topic, cfg.TopicsDir),
		commitEngine: newCommitEngine(cfg.Store, partitioner, cfg.Topic, cfg.TopicsDir, cfg.SourcePartition, cfg.FilenameZeroPadWidth, cfg.Provider.GetExtension()),
		walCoord:     newWALCoordinator(walLog),
		rotation:     newRotationEvaluator(cfg.FlushSize, cfg.RotateIntervalMs, cfg.RotateScheduleIntervalMs, cfg.Timezone),

		state:     RecoveryStarted,
		offset:    -1,
		retry:     newRetryGate(cfg.RetryBackoffMs),
		wallClock: wallClock,
	}

	if wallClock {
		w.rotation.seed(time.Now().UnixMilli())
	}
	w.rotation.seedSchedule(time.Now().UnixMilli())

	return w, nil
}

// Buffer enqueues rec at the tail of the buffer. Must be called from the
// same host thread as Write (spec.md §5).
func (w *PartitionWriter) Buffer(rec *record.Record) {
	w.buf.push(rec)
}

// Offset returns the last committed offset + 1 for this source partition.
func (w *PartitionWriter) Offset() int64 {
	return w.offset
}

// Write drains as much of the buffer as possible, advancing the state
// machine. It is the main() drain loop of spec.md §4.1.
func (w *PartitionWriter) Write() error {
	if w.inBackoff() {
		return nil
	}

	if w.state.inRecovery() {
		ok, err := w.recover()
		if err != nil {
			return w.handleError(err)
		}
		if !ok {
			return nil
		}
	}

	for !w.buf.empty() {
		switch w.state {
		case WriteStarted:
			w.host.Pause(w.cfg.Topic, w.cfg.SourcePartition)
			w.state = WritePartitionPaused

		case WritePartitionPaused:
			action, err := w.handleWritePartitionPaused()
			if err != nil {
				return w.handleError(err)
			}
			if action == actionRotate {
				w.state = ShouldRotate
			}

		case ShouldRotate:
			if err := w.doRotate(); err != nil {
				return w.handleError(err)
			}
			w.state = TempFileClosed

		case TempFileClosed:
			if err := w.doAppendWAL(); err != nil {
				return w.handleError(err)
			}
			w.state = WALAppended

		case WALAppended:
			if err := w.doCommit(); err != nil {
				return w.handleError(err)
			}
			w.state = FileCommitted

		case FileCommitted:
			w.state = WritePartitionPaused
		}
	}

	if w.recordCounter > 0 {
		now := time.Now().UnixMilli()
		ts := w.currentTimestampForRotation(nil)
		if w.rotation.shouldRotate(w.recordCounter, ts, now) {
			if err := w.doRotate(); err != nil {
				return w.handleError(err)
			}
			if err := w.doAppendWAL(); err != nil {
				return w.handleError(err)
			}
			if err := w.doCommit(); err != nil {
				return w.handleError(err)
			}
		}
	}

	w.host.Resume(w.cfg.Topic, w.cfg.SourcePartition)
	w.state = WriteStarted
	w.retry.reset()
	return nil
}

type writeAction int

const (
	actionContinueLoop writeAction = iota
	actionRotate
)

// handleWritePartitionPaused implements the WRITE_PARTITION_PAUSED step of
// spec.md §4.1.
func (w *PartitionWriter) handleWritePartitionPaused() (writeAction, error) {
	rec, ok := w.buf.peek()
	if !ok {
		return actionContinueLoop, nil
	}

	valueSchema := rec.ValueSchema
	var currentSchema *schema.Schema
	isNewSchema := false
	if valueSchema != nil {
		isNewSchema, currentSchema = w.schemaAdapt.decide(valueSchema, w.recordCounter, w.offset)
	}

	if isNewSchema {
		w.schemaAdapt.update(valueSchema)
		if w.cfg.HiveIntegration {
			if err := w.cat.CreateHiveTable(valueSchema); err != nil {
				return actionContinueLoop, &FatalError{Op: "createHiveTable", Err: err}
			}
			if err := w.cat.AlterHiveSchema(valueSchema); err != nil {
				return actionContinueLoop, &FatalError{Op: "alterHiveSchema", Err: err}
			}
		}
		if w.recordCounter > 0 {
			return actionRotate, nil
		}
		return actionContinueLoop, nil
	}

	now := time.Now().UnixMilli()
	ts := w.currentTimestampForRotation(rec)
	w.rotation.seed(ts)
	if w.rotation.shouldRotate(w.recordCounter, ts, now) {
		return actionRotate, nil
	}

	encoded, err := w.partitioner.EncodePartition(rec)
	if err != nil {
		return actionContinueLoop, &FatalError{Op: "encodePartition", Err: err}
	}

	ow, err := w.registry.getWriter(rec, encoded, currentSchema)
	if err != nil {
		return actionContinueLoop, &TransientError{Op: "getWriter", Err: err}
	}

	projected, err := w.schemaAdapt.project(rec.Value, valueSchema, currentSchema)
	if err != nil {
		return actionContinueLoop, &FatalError{Op: "project", Err: err}
	}

	toWrite := *rec
	toWrite.Value = projected
	if err := ow.writer.Write(&toWrite); err != nil {
		return actionContinueLoop, &TransientError{Op: "write", Err: err}
	}

	if w.offset < 0 {
		w.offset = rec.Offset
	}
	w.registry.recordWrite(encoded, rec.Offset)
	w.recordCounter++
	w.buf.pop()
	return actionContinueLoop, nil
}

func (w *PartitionWriter) currentTimestampForRotation(rec *record.Record) int64 {
	now := time.Now().UnixMilli()
	if w.wallClock || rec == nil {
		return now
	}
	ts, err := w.extractor.Extract(rec)
	if err != nil {
		return now
	}
	return ts.UnixMilli()
}

func (w *PartitionWriter) doRotate() error {
	rec, _ := w.buf.peek()
	now := time.Now().UnixMilli()
	ts := w.currentTimestampForRotation(rec)
	w.rotation.refresh(ts, now)
	if err := w.registry.closeAll(); err != nil {
		return &TransientError{Op: "closeAll", Err: err}
	}
	return nil
}

func (w *PartitionWriter) doAppendWAL() error {
	if err := w.walCoord.appendBegin(); err != nil {
		return &TransientError{Op: "wal.begin", Err: err}
	}
	for _, p := range w.registry.orderedPartitions() {
		ow, ok := w.registry.writers[p]
		if !ok {
			continue
		}
		dst := w.commitEngine.committedPath(p, w.registry.startOffsets[p], w.registry.endOffsets[p])
		if err := w.walCoord.appendEntry(ow.tempPath, dst); err != nil {
			return &TransientError{Op: "wal.entry", Err: err}
		}
	}
	if err := w.walCoord.appendEnd(); err != nil {
		return &TransientError{Op: "wal.end", Err: err}
	}
	return nil
}

func (w *PartitionWriter) doCommit() error {
	if !w.walCoord.hasBracket() {
		return &FatalError{Op: "commit", Err: errors.New("commit attempted without a complete WAL bracket")}
	}
	recordCounterSnapshot := w.recordCounter
	if err := w.commitEngine.commit(w.registry); err != nil {
		return &TransientError{Op: "commit", Err: err}
	}
	w.offset += int64(recordCounterSnapshot)
	w.recordCounter = 0
	w.registry.reset()
	w.walCoord.reset()
	return nil
}

// recover drives the RECOVERY_STARTED..OFFSET_RESET prefix of states,
// exactly once, per spec.md §4.1. It returns true once recovery is
// complete, and (false, err) when a step failed — the failing state is left
// untouched so the next Write() call resumes here. The backoff gate is
// checked by Write before recover is called.
func (w *PartitionWriter) recover() (bool, error) {
	for w.state.inRecovery() {
		switch w.state {
		case RecoveryStarted:
			w.host.Pause(w.cfg.Topic, w.cfg.SourcePartition)
			w.state = RecoveryPartitionPaused

		case RecoveryPartitionPaused:
			if err := w.walLog.Apply(); err != nil {
				return false, &TransientError{Op: "recover.wal.apply", Err: err}
			}
			w.state = WALApplied

		case WALApplied:
			if err := w.walLog.Truncate(); err != nil {
				return false, &TransientError{Op: "recover.wal.truncate", Err: err}
			}
			w.state = WALTruncated

		case WALTruncated:
			maxOffset, found, err := w.scanMaxCommittedOffset()
			if err != nil {
				return false, &TransientError{Op: "recover.scan", Err: err}
			}
			if found {
				w.offset = maxOffset + 1
			}
			w.state = OffsetReset

		case OffsetReset:
			if w.offset > 0 {
				w.host.Offset(w.cfg.Topic, w.cfg.SourcePartition, w.offset)
			}
			w.host.Resume(w.cfg.Topic, w.cfg.SourcePartition)
			w.state = WriteStarted
		}
	}
	return true, nil
}

// scanMaxCommittedOffset scans every committed file already written under
// this topic's directory tree and returns the highest endOffset encoded in
// a filename matching this writer's own (topic, sourcePartition), per
// spec.md §4.1 step 4.
func (w *PartitionWriter) scanMaxCommittedOffset() (int64, bool, error) {
	root := w.cfg.TopicsDir + "/" + w.cfg.Topic
	paths, err := w.store.List(root)
	if err != nil {
		return 0, false, fmt.Errorf("list %s: %w", root, err)
	}

	var max int64
	found := false
	for _, p := range paths {
		topic, partition, _, end, ok := parseCommittedFilename(p)
		if !ok || topic != w.cfg.Topic || partition != w.cfg.SourcePartition {
			continue
		}
		if !found || end > max {
			max = end
			found = true
		}
	}
	return max, found, nil
}

func (w *PartitionWriter) inBackoff() bool {
	return !w.retry.ready(time.Now().UnixMilli())
}

// handleError implements spec.md §7's error taxonomy: fatal errors are
// surfaced as-is; everything else is treated as transient I/O, recording
// a retry gate and requesting a host backoff before returning.
func (w *PartitionWriter) handleError(err error) error {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return err
	}
	w.retry.fail(time.Now().UnixMilli())
	w.host.Timeout(w.cfg.RetryBackoffMs)
	return err
}

// Close closes every open temp-file writer and releases the WAL. It does
// not commit partial work; committed state is preserved (spec.md §5). The
// temp files themselves are not deleted: they are left in storage,
// uncommitted.
func (w *PartitionWriter) Close() error {
	var errs []error
	if err := w.registry.closeAll(); err != nil {
		errs = append(errs, fmt.Errorf("sinkwriter: discard temp files: %w", err))
	}
	if err := w.walLog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sinkwriter: close wal: %w", err))
	}
	return errors.Join(errs...)
}
