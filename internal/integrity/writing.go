package integrity

import (
	"fmt"
	"sync"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// WritingMonitor is the anti-cheating aggregator of the writing assessment.
// Blocked clipboard actions are counted by the prevention tracker; only
// paste attempts are escalated to the flagger here.
type WritingMonitor struct {
	mu         sync.Mutex
	timeline   *Timeline
	userAgent  string
	keystrokes *KeystrokeTracker
	window     *WindowTracker
	prevention *PreventionTracker
	flagger    *Flagger

	highSpeedRaised bool
}

func NewWritingMonitor(opts Options) *WritingMonitor {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &WritingMonitor{
		timeline:   NewTimeline(clock),
		userAgent:  opts.UserAgent,
		keystrokes: NewKeystrokeTracker(clock),
		window:     NewWindowTracker(clock, opts.VisibilityAPI),
		prevention: NewPreventionTracker(),
		flagger:    NewFlagger(clock),
	}
}

func (m *WritingMonitor) Variant() models.AssessmentVariant {
	return models.VariantWriting
}

func (m *WritingMonitor) HandleEvent(ev models.BrowserEvent) EventOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.timeline.At(ev)
	var out EventOutcome
	var change WindowChange

	switch ev.Type {
	case models.EventKeyDown:
		out.Action, out.Prevented = m.prevention.Handle(ev)
		typing := m.keystrokes.HandleKeyPress(at)
		if typing.WordsPerMinute > HighTypingSpeedWPM {
			// raised once per excursion above the threshold
			if !m.highSpeedRaised {
				m.highSpeedRaised = true
				out.Flags = append(out.Flags, m.flagger.Flag(models.SuspicionHighTypingSpeed,
					fmt.Sprintf("Unusually high typing speed: %.0f WPM", typing.WordsPerMinute)))
			}
		} else {
			m.highSpeedRaised = false
		}
	case models.EventVisibilityChange:
		change = m.window.HandleVisibilityChange(ev.Hidden, at)
	case models.EventBlur:
		change = m.window.HandleBlur(at)
	case models.EventFocus:
		change = m.window.HandleFocus(at)
	case models.EventCopy, models.EventCut, models.EventPaste, models.EventContextMenu:
		out.Action, out.Prevented = m.prevention.Handle(ev)
		if out.Action == ActionPaste {
			out.Flags = append(out.Flags, m.flagger.Flag(models.SuspicionPasteAttempt, "Paste attempt detected"))
		}
	}

	if change.TabSwitched {
		if switches := m.window.WindowMetrics().TabSwitches; switches >= WritingTabSwitchThreshold {
			out.Flags = append(out.Flags, m.flagger.Flag(models.SuspicionTabSwitching, tabSwitchDetail(switches)))
		}
	}
	return out
}

func (m *WritingMonitor) StartPrompt() {
	m.window.StartPrompt()
}

func (m *WritingMonitor) AssessmentMetrics() models.AntiCheatingMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.AntiCheatingMetrics{
		TypingMetrics:           m.keystrokes.TypingMetrics(),
		WindowMetrics:           m.window.WindowMetrics(),
		PreventionMetrics:       m.prevention.PreventionMetrics(),
		SuspiciousActivityState: m.flagger.State(),
		UserAgent:               m.userAgent,
	}
}

func (m *WritingMonitor) Suspicious() bool {
	return m.flagger.Suspicious()
}
