package sinkwriter

import "github.com/flowsink/partitionwriter/internal/record"

// buffer is a FIFO queue of records awaiting write. There is no size
// limit; backpressure is entirely the host's pause/resume of upstream
// consumption (spec.md §4.2).
type buffer struct {
	items []*record.Record
}

func (b *buffer) push(rec *record.Record) {
	b.items = append(b.items, rec)
}

func (b *buffer) peek() (*record.Record, bool) {
	if len(b.items) == 0 {
		return nil, false
	}
	return b.items[0], true
}

func (b *buffer) pop() {
	if len(b.items) == 0 {
		return
	}
	b.items[0] = nil
	b.items = b.items[1:]
}

func (b *buffer) empty() bool {
	return len(b.items) == 0
}

func (b *buffer) len() int {
	return len(b.items)
}
