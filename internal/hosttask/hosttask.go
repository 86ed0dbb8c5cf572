// Package hosttask models the host's SinkTaskContext: the calls the writer
// makes to control upstream consumption of its own partition. It is the
// SinkTaskContext external collaborator of spec.md §6.
package hosttask

import "fmt"

// Context is the subset of Kafka Connect's SinkTaskContext the writer
// depends on, narrowed to one partition.
type Context interface {
	Pause(topic string, partition int32)
	Resume(topic string, partition int32)
	Offset(topic string, partition int32, offset int64)
	Timeout(ms int64)
}

// event records one call made against a MemoryContext, for tests that
// assert on the exact sequence of pause/resume/seek/timeout calls the
// writer issued.
type event struct {
	Kind      string
	Topic     string
	Partition int32
	Offset    int64
	TimeoutMs int64
}

// MemoryContext is an in-memory Context double: it records every call and
// tracks current pause state and the last requested timeout, for use in
// tests and in any single-process deployment that has no real connect
// framework underneath it.
type MemoryContext struct {
	events  []event
	paused  map[string]bool
	timeout int64
}

// NewMemoryContext returns an empty MemoryContext.
func NewMemoryContext() *MemoryContext {
	return &MemoryContext{paused: make(map[string]bool)}
}

func key(topic string, partition int32) string {
	return fmt.Sprintf("%s/%d", topic, partition)
}

func (c *MemoryContext) Pause(topic string, partition int32) {
	c.paused[key(topic, partition)] = true
	c.events = append(c.events, event{Kind: "pause", Topic: topic, Partition: partition})
}

func (c *MemoryContext) Resume(topic string, partition int32) {
	c.paused[key(topic, partition)] = false
	c.events = append(c.events, event{Kind: "resume", Topic: topic, Partition: partition})
}

func (c *MemoryContext) Offset(topic string, partition int32, offset int64) {
	c.events = append(c.events, event{Kind: "seek", Topic: topic, Partition: partition, Offset: offset})
}

func (c *MemoryContext) Timeout(ms int64) {
	c.timeout = ms
	c.events = append(c.events, event{Kind: "timeout", TimeoutMs: ms})
}

// IsPaused reports whether Pause was the most recent pause/resume call for
// (topic, partition).
func (c *MemoryContext) IsPaused(topic string, partition int32) bool {
	return c.paused[key(topic, partition)]
}

// LastTimeout returns the most recent value passed to Timeout, or 0 if
// Timeout was never called.
func (c *MemoryContext) LastTimeout() int64 {
	return c.timeout
}

// Events returns every call recorded so far, in order.
func (c *MemoryContext) Events() []string {
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}
