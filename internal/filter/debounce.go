package filter

import (
	"sync"
	"time"
)

// Debouncer collapses repeated signals of the same kind that arrive
// within a time window into the first one.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration // 0 disables collapsing
	seen   map[string]*debounceEntry
}

type debounceEntry struct {
	count    int
	recorded time.Time
}

// DebounceResult holds the result of a debounce check
type DebounceResult struct {
	ShouldRecord bool      // Whether the signal should update state
	Collapsed    int       // Signals collapsed into the current one so far
	RecordedAt   time.Time // Timestamp of the signal that was recorded
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		seen:   make(map[string]*debounceEntry),
	}
}

// Check decides whether a signal of kind observed at now should be recorded.
func (d *Debouncer) Check(kind string, now time.Time) DebounceResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.seen[kind]; ok && d.window > 0 {
		if now.Sub(existing.recorded) < d.window {
			existing.count++
			return DebounceResult{
				ShouldRecord: false,
				Collapsed:    existing.count,
				RecordedAt:   existing.recorded,
			}
		}
	}

	d.seen[kind] = &debounceEntry{recorded: now}
	return DebounceResult{
		ShouldRecord: true,
		RecordedAt:   now,
	}
}

// Reset clears the debounce state
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]*debounceEntry)
}
