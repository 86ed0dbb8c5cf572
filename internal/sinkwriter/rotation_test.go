package sinkwriter

import "testing"

func TestRotationEvaluatorSizeThreshold(t *testing.T) {
	r := newRotationEvaluator(3, 0, 0, nil)
	if r.shouldRotate(2, 0, 0) {
		t.Fatalf("should not rotate below flushSize")
	}
	if !r.shouldRotate(3, 0, 0) {
		t.Fatalf("should rotate at flushSize")
	}
}

func TestRotationEvaluatorPeriodicSeedsOnce(t *testing.T) {
	r := newRotationEvaluator(0, 1000, 0, nil)
	r.seed(5000)
	r.seed(9000) // must not override the first seed
	if r.lastRotate.value != 5000 {
		t.Fatalf("lastRotate = %d, want 5000 (seed must be idempotent)", r.lastRotate.value)
	}
	if r.shouldRotate(0, 5500, 0) {
		t.Fatalf("500ms elapsed should not trigger a 1000ms interval")
	}
	if !r.shouldRotate(0, 6000, 0) {
		t.Fatalf("1000ms elapsed should trigger a 1000ms interval")
	}
}

func TestRotationEvaluatorScheduledThreshold(t *testing.T) {
	r := newRotationEvaluator(0, 0, 1000, nil)
	r.refresh(0, 10_000) // seeds nextScheduledRotate relative to day start
	if r.shouldRotate(0, 0, 10_500) {
		t.Fatalf("should not rotate before nextScheduledRotate")
	}
	if !r.shouldRotate(0, 0, r.nextScheduledRotate.value) {
		t.Fatalf("should rotate once now reaches nextScheduledRotate")
	}
}

func TestRotationEvaluatorDisabledPredicatesNeverFire(t *testing.T) {
	r := newRotationEvaluator(0, 0, 0, nil)
	if r.shouldRotate(1_000_000, 1_000_000_000, 1_000_000_000) {
		t.Fatalf("all predicates disabled (zero config) must never rotate")
	}
}
