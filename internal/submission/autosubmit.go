package submission

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultAutoSubmitDelay is the pause between the results page mounting and
// the automatic submit.
const DefaultAutoSubmitDelay = 500 * time.Millisecond

// AutoSubmitter fires one automatic submit per Arm. It stands down when the
// session is already submitted, an attempt holds the lock, or the previous
// attempt failed; a failure is never retried automatically.
type AutoSubmitter struct {
	manager  *Manager
	delay    time.Duration
	payload  func() Payload
	onResult func(Result, error)
	logger   *slog.Logger

	mu        sync.Mutex
	attempted bool
	timer     *time.Timer
}

func NewAutoSubmitter(manager *Manager, delay time.Duration, payload func() Payload, onResult func(Result, error), logger *slog.Logger) *AutoSubmitter {
	if delay <= 0 {
		delay = DefaultAutoSubmitDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSubmitter{
		manager:  manager,
		delay:    delay,
		payload:  payload,
		onResult: onResult,
		logger:   logger,
	}
}

// Arm schedules an attempt after the delay and resets the attempted flag.
func (a *AutoSubmitter) Arm(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.attempted = false
	a.timer = time.AfterFunc(a.delay, func() { a.fire(ctx) })
}

// Stop cancels a pending attempt.
func (a *AutoSubmitter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoSubmitter) fire(ctx context.Context) {
	a.mu.Lock()
	if a.attempted {
		a.mu.Unlock()
		return
	}
	st := a.manager.State()
	if st.IsSubmitted || st.SubmissionLock || st.SubmissionError != "" {
		a.mu.Unlock()
		a.logger.DebugContext(ctx, "Auto-submit skipped",
			"submitted", st.IsSubmitted,
			"locked", st.SubmissionLock,
			"has_error", st.SubmissionError != "")
		return
	}
	a.attempted = true
	a.mu.Unlock()

	res, err := a.manager.Submit(ctx, a.payload())
	if a.onResult != nil {
		a.onResult(res, err)
	}
}
