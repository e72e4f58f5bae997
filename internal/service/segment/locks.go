package segment

import (
	"sync"

	"github.com/google/uuid"
)

// segmentLocks serializes recalculations per segment. Two concurrent
// recalculations of the same segment would diff against a stale membership
// snapshot and lose updates; different segments proceed in parallel.
type segmentLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSegmentLocks() *segmentLocks {
	return &segmentLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// acquire blocks until the segment's lock is held and returns the release
// function. Entries are reference-counted so the map does not grow with
// every segment ever recalculated.
func (l *segmentLocks) acquire(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
