package integrity

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// Suspicion thresholds.
const (
	HighTypingSpeedWPM         = 120.0
	WritingTabSwitchThreshold  = 3
	AptitudeTabSwitchThreshold = 3
	AptitudeShortcutThreshold  = 2
	AptitudeBlurThreshold      = 3
)

var ErrUnknownVariant = errors.New("unknown assessment variant")

// EventOutcome tells the caller what happened to one browser event.
type EventOutcome struct {
	// Prevented means the UI must call preventDefault() on the event.
	Prevented bool
	Action    PreventedAction
	// Flags holds the suspicion reasons raised by this event.
	Flags []models.SuspicionReason
}

// Monitor composes the trackers of one candidate session.
type Monitor interface {
	Variant() models.AssessmentVariant
	HandleEvent(ev models.BrowserEvent) EventOutcome
	StartPrompt()
	// AssessmentMetrics is a pure read and safe to call repeatedly.
	AssessmentMetrics() models.AntiCheatingMetrics
	Suspicious() bool
}

// Resetter is implemented by monitors that expose an explicit reset.
type Resetter interface {
	ResetMetrics()
}

type Options struct {
	Clock         Clock
	UserAgent     string
	VisibilityAPI bool
}

// NewMonitor builds the monitor for the given assessment variant.
func NewMonitor(variant models.AssessmentVariant, opts Options) (Monitor, error) {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	switch variant {
	case models.VariantWriting:
		return NewWritingMonitor(opts), nil
	case models.VariantAptitude:
		return NewAptitudeMonitor(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

func tabSwitchDetail(count int) string {
	return fmt.Sprintf("Frequent tab switching detected (%d switches)", count)
}
