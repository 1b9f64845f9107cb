package integrity

import (
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// fakeClock is a manually advanced Clock shared by the tracker tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}


func TestTimeline_At(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	tl := NewTimeline(clock)
	clientStart := start.Add(-3 * time.Hour)

	if got := tl.At(models.BrowserEvent{}); !got.Equal(start) {
		t.Errorf("unstamped event = %v, want now %v", got, start)
	}
	if got := tl.At(models.BrowserEvent{Timestamp: clientStart.UnixMilli()}); !got.Equal(start) {
		t.Errorf("first stamped event = %v, want now %v", got, start)
	}

	// gaps between client events are kept even when the server clock lags
	clock.Advance(100 * time.Millisecond)
	got := tl.At(models.BrowserEvent{Timestamp: clientStart.Add(1500 * time.Millisecond).UnixMilli()})
	if want := start.Add(1500 * time.Millisecond); !got.Equal(want) {
		t.Errorf("second event = %v, want %v", got, want)
	}
}
