package integrity

import (
	"sync"
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// WindowChange reports which counters an event moved.
type WindowChange struct {
	TabSwitched bool
	Blurred     bool
	Focused     bool
	// Transitioned is true when the Active/Inactive state changed.
	Transitioned bool
}

// WindowTracker is a two-state (Active/Inactive) machine per candidate window.
//
// Transitions come from a single source: visibilitychange when the browser
// supports the Visibility API, blur/focus otherwise. Events from the other
// source are ignored for transitions, and an event that would re-enter the
// current state is a no-op, so one real switch is counted once.
//
// In split mode (aptitude) tab switches, blurs and focuses are counted per
// source instead of per transition. Without the Visibility API a blur-driven
// transition also counts as a tab switch.
type WindowTracker struct {
	mu            sync.Mutex
	clock         Clock
	useVisibility bool
	split         bool

	inactive        bool
	hidden          bool
	blurred         bool
	inactivityStart time.Time

	metrics models.WindowMetrics

	promptStart time.Time
	timeSpent   time.Duration
}

// NewWindowTracker returns the base tracker. visibilityAPI selects
// visibilitychange as the transition source.
func NewWindowTracker(clock Clock, visibilityAPI bool) *WindowTracker {
	return newWindowTracker(clock, visibilityAPI, false)
}

// NewSplitWindowTracker returns the aptitude tracker, which counts tab
// switches and window blurs independently and supports Reset.
func NewSplitWindowTracker(clock Clock, visibilityAPI bool) *WindowTracker {
	return newWindowTracker(clock, visibilityAPI, true)
}

func newWindowTracker(clock Clock, visibilityAPI, split bool) *WindowTracker {
	if clock == nil {
		clock = SystemClock()
	}
	return &WindowTracker{
		clock:         clock,
		useVisibility: visibilityAPI,
		split:         split,
		promptStart:   clock.Now(),
		metrics: models.WindowMetrics{
			InactivityPeriods: []int64{},
		},
	}
}

// HandleVisibilityChange processes a visibilitychange with document.hidden.
func (w *WindowTracker) HandleVisibilityChange(hidden bool, at time.Time) WindowChange {
	w.mu.Lock()
	defer w.mu.Unlock()

	var change WindowChange
	if w.split && w.useVisibility && hidden && !w.hidden {
		w.metrics.TabSwitches++
		change.TabSwitched = true
	}
	w.hidden = hidden

	if !w.useVisibility {
		return change
	}
	if hidden {
		w.deactivate(at, &change)
	} else {
		w.activate(at, &change)
	}
	return change
}

// HandleBlur processes a window blur.
func (w *WindowTracker) HandleBlur(at time.Time) WindowChange {
	w.mu.Lock()
	defer w.mu.Unlock()

	var change WindowChange
	if w.split && !w.blurred {
		w.metrics.WindowBlurs++
		change.Blurred = true
	}
	w.blurred = true

	if !w.useVisibility {
		w.deactivate(at, &change)
	}
	return change
}

// HandleFocus processes a window focus.
func (w *WindowTracker) HandleFocus(at time.Time) WindowChange {
	w.mu.Lock()
	defer w.mu.Unlock()

	var change WindowChange
	if w.split && w.blurred {
		w.metrics.WindowFocuses++
		change.Focused = true
	}
	w.blurred = false

	if !w.useVisibility {
		w.activate(at, &change)
	}
	return change
}

func (w *WindowTracker) deactivate(at time.Time, change *WindowChange) {
	if w.inactive {
		return
	}
	w.inactive = true
	change.Transitioned = true

	switch {
	case !w.split:
		w.metrics.TabSwitches++
		w.metrics.WindowBlurs++
		change.TabSwitched = true
		change.Blurred = true
	case !w.useVisibility:
		// no visibility events arrive, a blur is the only sign of a tab switch
		w.metrics.TabSwitches++
		change.TabSwitched = true
	}

	w.inactivityStart = at
	ms := at.UnixMilli()
	w.metrics.LastInactiveAt = &ms

	if d := at.Sub(w.promptStart); d > 0 {
		w.timeSpent += d
	}
}

func (w *WindowTracker) activate(at time.Time, change *WindowChange) {
	if !w.inactive {
		return
	}
	w.inactive = false
	change.Transitioned = true

	if !w.split {
		w.metrics.WindowFocuses++
		change.Focused = true
	}

	if !w.inactivityStart.IsZero() {
		duration := at.Sub(w.inactivityStart).Milliseconds()
		if duration < 0 {
			duration = 0
		}
		w.metrics.InactivityPeriods = append(w.metrics.InactivityPeriods, duration)
		w.metrics.TotalInactivityTime += duration
		w.inactivityStart = time.Time{}
	}

	w.promptStart = at
}

// StartPrompt resets the time-spent measure for a new prompt.
func (w *WindowTracker) StartPrompt() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.promptStart = w.clock.Now()
	w.timeSpent = 0
}

// WindowMetrics returns the counters plus the active time spent on the
// current prompt.
func (w *WindowTracker) WindowMetrics() models.WindowMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := w.metrics
	snapshot.InactivityPeriods = append([]int64(nil), w.metrics.InactivityPeriods...)
	if w.metrics.LastInactiveAt != nil {
		v := *w.metrics.LastInactiveAt
		snapshot.LastInactiveAt = &v
	}

	spent := w.timeSpent
	if !w.inactive {
		if d := w.clock.Now().Sub(w.promptStart); d > 0 {
			spent += d
		}
	}
	snapshot.TimeSpentMs = spent.Milliseconds()
	return snapshot
}

// Reset zeroes all counters. Only the aptitude flow exposes it.
func (w *WindowTracker) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.inactive = false
	w.hidden = false
	w.blurred = false
	w.inactivityStart = time.Time{}
	w.metrics = models.WindowMetrics{InactivityPeriods: []int64{}}
	w.promptStart = w.clock.Now()
	w.timeSpent = 0
}
