// Package integrity collects the behavioral signals of a candidate session:
// keystroke timing, window/tab visibility, blocked clipboard and shortcut
// attempts, and the suspicion flags derived from them.
package integrity

import (
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// Clock abstracts wall time so trackers can be driven deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Timeline maps client event timestamps onto the server clock. The offset is
// taken from the first stamped event and then kept, so gaps between client
// events survive while every elapsed time is measured on the server clock.
// Callers serialize access.
type Timeline struct {
	clock    Clock
	offset   time.Duration
	anchored bool
}

func NewTimeline(clock Clock) *Timeline {
	if clock == nil {
		clock = SystemClock()
	}
	return &Timeline{clock: clock}
}

// At returns the server-side time of an event. Unstamped events happen now.
func (t *Timeline) At(ev models.BrowserEvent) time.Time {
	now := t.clock.Now()
	if ev.Timestamp <= 0 {
		return now
	}
	client := time.UnixMilli(ev.Timestamp)
	if !t.anchored {
		t.offset = now.Sub(client)
		t.anchored = true
	}
	return client.Add(t.offset)
}
