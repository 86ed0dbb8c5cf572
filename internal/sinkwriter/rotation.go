package sinkwriter

import "time"

// millis is an optional epoch-millisecond value. lastRotate and
// nextScheduledRotate are modeled this way rather than as a bare int64, per
// the REDESIGN note against accidental zero-valued comparisons: a writer
// that has never rotated has no lastRotate, not a lastRotate of zero.
type millis struct {
	valid bool
	value int64
}

func noMillis() millis       { return millis{} }
func someMillis(v int64) millis { return millis{valid: true, value: v} }

// rotationEvaluator decides whether the currently open temp files should be
// rotated, per the three independent predicates of spec.md §4.3.
type rotationEvaluator struct {
	flushSize                int
	rotateIntervalMs         int64
	rotateScheduleIntervalMs int64
	timezone                 *time.Location

	lastRotate          millis
	nextScheduledRotate millis
}

func newRotationEvaluator(flushSize int, rotateIntervalMs, rotateScheduleIntervalMs int64, tz *time.Location) *rotationEvaluator {
	if tz == nil {
		tz = time.UTC
	}
	return &rotationEvaluator{
		flushSize:                flushSize,
		rotateIntervalMs:         rotateIntervalMs,
		rotateScheduleIntervalMs: rotateScheduleIntervalMs,
		timezone:                 tz,
	}
}

// seed establishes lastRotate the first time it's needed: seedTimestamp is
// the first record's timestamp for record-time rotation, or "now" at
// construction for a wall-clock extractor (spec.md §4.3).
func (r *rotationEvaluator) seed(seedTimestamp int64) {
	if !r.lastRotate.valid {
		r.lastRotate = someMillis(seedTimestamp)
	}
}

// shouldRotate evaluates the three predicates OR'd together. currentTimestamp
// is either the current record's extracted timestamp or wall-clock now,
// depending on the extractor in use; now is always wall-clock now, used
// only by the scheduled-rotation predicate.
func (r *rotationEvaluator) shouldRotate(recordCounter int, currentTimestamp, now int64) bool {
	if r.flushSize > 0 && recordCounter >= r.flushSize {
		return true
	}
	if r.rotateIntervalMs > 0 && r.lastRotate.valid && currentTimestamp-r.lastRotate.value >= r.rotateIntervalMs {
		return true
	}
	if r.rotateScheduleIntervalMs > 0 && r.nextScheduledRotate.valid && now >= r.nextScheduledRotate.value {
		return true
	}
	return false
}

// refresh is called on entry to ShouldRotate and on tail flush, updating
// both timers from the record that triggered rotation.
func (r *rotationEvaluator) refresh(currentTimestamp, now int64) {
	r.lastRotate = someMillis(currentTimestamp)
	if r.rotateScheduleIntervalMs > 0 {
		r.nextScheduledRotate = someMillis(nextScheduledRotate(now, r.timezone, r.rotateScheduleIntervalMs))
	}
}

// seedSchedule establishes nextScheduledRotate at construction time, mirroring
// the constructor-time updateRotationTimers call of the Java original. Without
// this the scheduled-rotation predicate in shouldRotate can never fire for a
// writer that never rotates for any other reason (flushSize and
// rotateIntervalMs both unset).
func (r *rotationEvaluator) seedSchedule(now int64) {
	if r.rotateScheduleIntervalMs > 0 && !r.nextScheduledRotate.valid {
		r.nextScheduledRotate = someMillis(nextScheduledRotate(now, r.timezone, r.rotateScheduleIntervalMs))
	}
}

// nextScheduledRotate aligns now forward to the next multiple of
// intervalMs measured from the start of now's calendar day in tz, so
// scheduled rotation times are fixed within each day rather than drifting
// with process start time (spec.md §4.3).
func nextScheduledRotate(now int64, tz *time.Location, intervalMs int64) int64 {
	t := time.UnixMilli(now).In(tz)
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
	dayStartMs := dayStart.UnixMilli()

	elapsed := now - dayStartMs
	steps := elapsed/intervalMs + 1
	return dayStartMs + steps*intervalMs
}
