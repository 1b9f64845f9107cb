package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/integrity"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// DefaultLockTTL bounds how long a session lock blocks a candidate.
const DefaultLockTTL = 12 * time.Hour

// SaveRequest is what the remote save receives. WritingScores is nil when
// the writing section was not scored.
type SaveRequest struct {
	SubmissionKey     string
	CandidateName     string
	CandidatePosition string
	CompletedPrompts  []models.CompletedPrompt
	AptitudeScore     int
	AptitudeTotal     int
	WritingScores     []models.WritingScore
	Metrics           models.AntiCheatingMetrics
}

// SaveResult is the outcome of a remote save. Existing is true when a row
// with the same submission key was already stored.
type SaveResult struct {
	ID       string
	Existing bool
}

// Saver persists an assessment.
type Saver interface {
	Save(ctx context.Context, req SaveRequest) (SaveResult, error)
}

// Notifier is told once about every newly stored assessment.
type Notifier interface {
	Submitted(ctx context.Context, req SaveRequest, assessmentID string)
}

// Payload is captured by the caller at submit time.
type Payload struct {
	CompletedPrompts []models.CompletedPrompt
	AptitudeScore    int
	AptitudeTotal    int
	WritingScores    []models.WritingScore
	Metrics          *models.AntiCheatingMetrics
}

type Result struct {
	AssessmentID string
	// Existing is true when the id belongs to an earlier submission.
	Existing bool
}

type Options struct {
	LockTTL  time.Duration
	Metrics  *Metrics
	Notifier Notifier
	Logger   *slog.Logger
}

// Coordinator owns the shared substrate of all submission managers: the
// key-value store holding submission records and session locks, the save
// call, and the in-process dedup of concurrent attempts.
type Coordinator struct {
	store    cache.Store
	saver    Saver
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	lockTTL  time.Duration
	now      func() time.Time
	group    singleflight.Group
}

func NewCoordinator(store cache.Store, saver Saver, opts Options) *Coordinator {
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		saver:    saver,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		lockTTL:  opts.LockTTL,
		now:      time.Now,
	}
}

// SubmittedID returns the persisted assessment id of a candidate, if any.
func (c *Coordinator) SubmittedID(ctx context.Context, name, position string) (string, bool) {
	return c.persistedID(ctx, SubmissionKey(name, position))
}

func (c *Coordinator) persistedID(ctx context.Context, key string) (string, bool) {
	id, err := c.store.GetString(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheNotFound) {
			c.logger.WarnContext(ctx, "Failed to read submission record", "key", key, "error", err)
		}
		return "", false
	}
	return id, id != ""
}

type flightResult struct {
	id       string
	existing bool
}

// flight runs one deduplicated attempt. It is shared by every concurrent
// caller, so it never observes a single caller's cancellation.
func (c *Coordinator) flight(ctx context.Context, name, position string, p Payload) (flightResult, error) {
	ctx = context.WithoutCancel(ctx)
	key := SubmissionKey(name, position)
	lockKey := LockKey(name, position)

	if id, ok := c.persistedID(ctx, key); ok {
		return flightResult{id: id, existing: true}, nil
	}

	stamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	acquired, err := c.store.SetNX(ctx, lockKey, stamp, c.lockTTL)
	if err != nil {
		return flightResult{}, newError(KindRemoteFailure, fmt.Errorf("acquire session lock: %w", err))
	}
	if !acquired {
		// the lock belongs to the other attempt, leave it alone
		if id, ok := c.persistedID(ctx, key); ok {
			return flightResult{id: id, existing: true}, nil
		}
		return flightResult{}, ErrDuplicateSubmission
	}

	res, err := c.persist(ctx, key, name, position, p)
	if err != nil {
		cache.SafeDelete(ctx, c.store, lockKey)
		return flightResult{}, classify(err)
	}
	return res, nil
}

func (c *Coordinator) persist(ctx context.Context, key, name, position string, p Payload) (flightResult, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(position) == "" {
		return flightResult{}, newError(KindMissingCandidateInfo, nil)
	}
	if len(p.CompletedPrompts) == 0 {
		return flightResult{}, newError(KindNoCompletedPrompts, nil)
	}

	req := SaveRequest{
		SubmissionKey:     key,
		CandidateName:     strings.TrimSpace(name),
		CandidatePosition: strings.TrimSpace(position),
		CompletedPrompts:  p.CompletedPrompts,
		AptitudeScore:     p.AptitudeScore,
		AptitudeTotal:     p.AptitudeTotal,
		WritingScores:     p.WritingScores,
		Metrics:           integrity.Sanitize(p.Metrics, p.CompletedPrompts),
	}

	c.metrics.InFlight.Inc()
	start := c.now()
	saved, err := c.saver.Save(ctx, req)
	c.metrics.SaveDuration.Observe(c.now().Sub(start).Seconds())
	c.metrics.InFlight.Dec()
	if err != nil {
		return flightResult{}, err
	}
	if saved.ID == "" {
		return flightResult{}, errors.New("save returned an empty assessment id")
	}

	if err := c.store.SetString(ctx, key, saved.ID, 0); err != nil {
		// the row exists; the unique submission key still blocks a second save
		c.logger.ErrorContext(ctx, "Failed to persist submission record",
			"assessment_id", saved.ID,
			"error", err)
	}
	// a row found by its submission key was announced when it was stored
	if c.notifier != nil && !saved.Existing {
		c.notifier.Submitted(ctx, req, saved.ID)
	}
	return flightResult{id: saved.ID, existing: saved.Existing}, nil
}

// Manager tracks the submission state of one candidate session.
type Manager struct {
	coord    *Coordinator
	name     string
	position string

	mu     sync.Mutex
	state  models.SubmissionState
	active int
}

func (c *Coordinator) NewManager(name, position string) *Manager {
	return &Manager{coord: c, name: name, position: position}
}

// Submit saves the assessment at most once. Concurrent calls for the same
// candidate share one save and resolve to the same id.
func (m *Manager) Submit(ctx context.Context, p Payload) (Result, error) {
	c := m.coord

	m.mu.Lock()
	if m.state.IsSubmitted && m.state.AssessmentID != "" {
		id := m.state.AssessmentID
		m.mu.Unlock()
		c.metrics.Attempts.WithLabelValues(OutcomeExisting).Inc()
		return Result{AssessmentID: id, Existing: true}, nil
	}
	if m.active == 0 {
		now := c.now()
		m.state.SubmissionLock = true
		m.state.IsSubmitting = true
		m.state.SubmissionError = ""
		m.state.SubmissionStartTime = &now
		m.state.RetryCount++
	}
	m.active++
	m.mu.Unlock()

	v, err, _ := c.group.Do(SubmissionKey(m.name, m.position), func() (interface{}, error) {
		return c.flight(ctx, m.name, m.position, p)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	m.active--
	if m.active == 0 {
		m.state.IsSubmitting = false
		m.state.SubmissionLock = false
		m.state.SubmissionStartTime = nil
	}

	if err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			c.metrics.Attempts.WithLabelValues(OutcomeDuplicate).Inc()
			c.logger.InfoContext(ctx, "Submission already in flight", "candidate", NormalizeCandidate(m.name, m.position))
			return Result{}, err
		}
		se := classify(err)
		m.state.SubmissionError = se.Message
		c.metrics.Attempts.WithLabelValues(OutcomeFailed).Inc()
		c.logger.ErrorContext(ctx, "Submission failed",
			"candidate", NormalizeCandidate(m.name, m.position),
			"kind", se.Kind,
			"retry_count", m.state.RetryCount,
			"error", err)
		return Result{}, se
	}

	res := v.(flightResult)
	m.state.AssessmentID = res.id
	m.state.IsSubmitted = true
	m.state.SubmissionError = ""

	outcome := OutcomeSaved
	if res.existing {
		outcome = OutcomeExisting
	}
	c.metrics.Attempts.WithLabelValues(outcome).Inc()
	c.logger.InfoContext(ctx, "Assessment submitted",
		"assessment_id", res.id,
		"existing", res.existing)

	return Result{AssessmentID: res.id, Existing: res.existing}, nil
}

// State returns a copy of the current submission state.
func (m *Manager) State() models.SubmissionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state
	if st.SubmissionStartTime != nil {
		t := *st.SubmissionStartTime
		st.SubmissionStartTime = &t
	}
	return st
}

// ClearError drops the last failure so an automatic attempt may run again.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SubmissionError = ""
}

func (m *Manager) Candidate() (name, position string) {
	return m.name, m.position
}
