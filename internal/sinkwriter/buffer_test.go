package sinkwriter

import "testing"

func TestBufferFIFOOrder(t *testing.T) {
	var b buffer
	if !b.empty() {
		t.Fatalf("new buffer must be empty")
	}
	b.push(rec(1, "a"))
	b.push(rec(2, "b"))
	if b.len() != 2 {
		t.Fatalf("len = %d, want 2", b.len())
	}
	head, ok := b.peek()
	if !ok || head.Offset != 1 {
		t.Fatalf("peek should return the first-pushed record")
	}
	b.pop()
	head, ok = b.peek()
	if !ok || head.Offset != 2 {
		t.Fatalf("after pop, peek should return the second-pushed record")
	}
	b.pop()
	if !b.empty() {
		t.Fatalf("buffer should be empty after popping every record")
	}
}

func TestBufferPopOnEmptyIsNoop(t *testing.T) {
	var b buffer
	b.pop() // must not panic
	if !b.empty() {
		t.Fatalf("popping an empty buffer must leave it empty")
	}
}
