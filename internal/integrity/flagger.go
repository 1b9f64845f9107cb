package integrity

import (
	"strings"
	"sync"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

const detailSeparator = "; "

// Flagger accumulates suspicion reasons. It is a ratchet: once raised, the
// flag stays raised until Reset.
type Flagger struct {
	mu      sync.Mutex
	clock   Clock
	reasons []models.SuspicionReason
}

func NewFlagger(clock Clock) *Flagger {
	if clock == nil {
		clock = SystemClock()
	}
	return &Flagger{clock: clock}
}

// Flag records a new reason and returns it.
func (f *Flagger) Flag(kind models.SuspicionKind, detail string) models.SuspicionReason {
	f.mu.Lock()
	defer f.mu.Unlock()

	if kind == "" {
		kind = models.SuspicionCustom
	}
	reason := models.SuspicionReason{Kind: kind, Detail: detail, At: f.clock.Now()}
	f.reasons = append(f.reasons, reason)
	return reason
}

// State returns the flag, the "; "-joined detail and the audit log.
func (f *Flagger) State() models.SuspiciousActivityState {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := models.SuspiciousActivityState{
		SuspiciousActivity:   len(f.reasons) > 0,
		SuspiciousActivities: make([]string, 0, len(f.reasons)),
		Reasons:              append([]models.SuspicionReason{}, f.reasons...),
	}
	for _, r := range f.reasons {
		state.SuspiciousActivities = append(state.SuspiciousActivities, r.Detail)
	}
	state.SuspiciousActivityDetail = joinDetails(state.SuspiciousActivities)
	return state
}

func (f *Flagger) Suspicious() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons) > 0
}

func (f *Flagger) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = nil
}

func joinDetails(details []string) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		if d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, detailSeparator)
}
