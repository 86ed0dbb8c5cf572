package sinkwriter

import (
	"fmt"

	"github.com/flowsink/partitionwriter/internal/storage"
)

// walCoordinator wraps appends to the partition's WAL with begin/end
// markers, tracking the "appended" set of spec.md §3 so each entry is
// written at most once per rotation epoch.
type walCoordinator struct {
	log      storage.WAL
	appended map[string]bool
}

func newWALCoordinator(log storage.WAL) *walCoordinator {
	return &walCoordinator{log: log, appended: make(map[string]bool)}
}

// reset clears the appended set. Per spec.md §9 open question (a), this
// happens at commit-start, not at epoch-start — a retry of commit after
// partial progress cannot rely on appended to skip work it already did in
// an earlier attempt; it relies on WAL idempotence instead (see
// commitEngine.commit).
func (c *walCoordinator) reset() {
	c.appended = make(map[string]bool)
}

// appendBegin writes the begin marker once per epoch.
func (c *walCoordinator) appendBegin() error {
	if c.appended[c.log.BeginMarker()] {
		return nil
	}
	if err := c.log.Append(c.log.BeginMarker(), ""); err != nil {
		return fmt.Errorf("walcoord: append begin marker: %w", err)
	}
	c.appended[c.log.BeginMarker()] = true
	return nil
}

// appendEntry records one temp-file-to-committed-file rename, skipping it
// if already present in the appended set.
func (c *walCoordinator) appendEntry(tempPath, committedPath string) error {
	if c.appended[tempPath] {
		return nil
	}
	if err := c.log.Append(tempPath, committedPath); err != nil {
		return fmt.Errorf("walcoord: append entry %s -> %s: %w", tempPath, committedPath, err)
	}
	c.appended[tempPath] = true
	return nil
}

// appendEnd writes the end marker once per epoch.
func (c *walCoordinator) appendEnd() error {
	if c.appended[c.log.EndMarker()] {
		return nil
	}
	if err := c.log.Append(c.log.EndMarker(), ""); err != nil {
		return fmt.Errorf("walcoord: append end marker: %w", err)
	}
	c.appended[c.log.EndMarker()] = true
	return nil
}

// hasBracket reports whether both markers have been appended this epoch,
// the precondition commit() requires per spec.md §4.4.
func (c *walCoordinator) hasBracket() bool {
	return c.appended[c.log.BeginMarker()] && c.appended[c.log.EndMarker()]
}
