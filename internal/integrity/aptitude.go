package integrity

import (
	"fmt"
	"sync"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// AptitudeMonitor guards the timed multiple-choice test. Unlike the writing
// flow it flags clipboard and context-menu attempts immediately and counts
// tab switches and window blurs as separate signals.
type AptitudeMonitor struct {
	mu         sync.Mutex
	timeline   *Timeline
	userAgent  string
	window     *WindowTracker
	prevention *PreventionTracker
	flagger    *Flagger
}

func NewAptitudeMonitor(opts Options) *AptitudeMonitor {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &AptitudeMonitor{
		timeline:   NewTimeline(clock),
		userAgent:  opts.UserAgent,
		window:     NewSplitWindowTracker(clock, opts.VisibilityAPI),
		prevention: NewPreventionTracker(),
		flagger:    NewFlagger(clock),
	}
}

func (m *AptitudeMonitor) Variant() models.AssessmentVariant {
	return models.VariantAptitude
}

func (m *AptitudeMonitor) HandleEvent(ev models.BrowserEvent) EventOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.timeline.At(ev)
	var out EventOutcome
	var change WindowChange

	switch ev.Type {
	case models.EventVisibilityChange:
		change = m.window.HandleVisibilityChange(ev.Hidden, at)
	case models.EventBlur:
		change = m.window.HandleBlur(at)
	case models.EventFocus:
		m.window.HandleFocus(at)
	case models.EventKeyDown, models.EventCopy, models.EventCut, models.EventPaste, models.EventContextMenu:
		out.Action, out.Prevented = m.prevention.Handle(ev)
		if reason, ok := m.escalate(out.Action); ok {
			out.Flags = append(out.Flags, reason)
		}
	}

	if change.TabSwitched {
		if n := m.window.WindowMetrics().TabSwitches; n >= AptitudeTabSwitchThreshold {
			out.Flags = append(out.Flags, m.flagger.Flag(models.SuspicionTabSwitching, tabSwitchDetail(n)))
		}
	}
	if change.Blurred {
		if n := m.window.WindowMetrics().WindowBlurs; n >= AptitudeBlurThreshold {
			out.Flags = append(out.Flags, m.flagger.Flag(models.SuspicionWindowSwitching,
				fmt.Sprintf("Frequent window switching detected (%d blurs)", n)))
		}
	}
	return out
}

func (m *AptitudeMonitor) escalate(action PreventedAction) (models.SuspicionReason, bool) {
	switch action {
	case ActionCopy:
		return m.flagger.Flag(models.SuspicionCopyAttempt, "Copy attempt detected"), true
	case ActionPaste:
		return m.flagger.Flag(models.SuspicionPasteAttempt, "Paste attempt detected"), true
	case ActionRightClick:
		return m.flagger.Flag(models.SuspicionRightClickAttempt, "Right-click attempt detected"), true
	case ActionShortcut:
		if n := m.prevention.PreventionMetrics().KeyboardShortcuts; n >= AptitudeShortcutThreshold {
			return m.flagger.Flag(models.SuspicionKeyboardShortcuts,
				fmt.Sprintf("Multiple keyboard shortcut attempts (%d)", n)), true
		}
	}
	return models.SuspicionReason{}, false
}

func (m *AptitudeMonitor) StartPrompt() {
	m.window.StartPrompt()
}

func (m *AptitudeMonitor) AssessmentMetrics() models.AntiCheatingMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.AntiCheatingMetrics{
		WindowMetrics:           m.window.WindowMetrics(),
		PreventionMetrics:       m.prevention.PreventionMetrics(),
		SuspiciousActivityState: m.flagger.State(),
		UserAgent:               m.userAgent,
	}
}

func (m *AptitudeMonitor) Suspicious() bool {
	return m.flagger.Suspicious()
}

// ResetMetrics clears every counter and lowers the suspicion flag.
func (m *AptitudeMonitor) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window.Reset()
	m.prevention.Reset()
	m.flagger.Reset()
}
