package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/events"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/integrity"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/llm"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/submission"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

type SessionServiceConfig struct {
	AutoSubmitDelay time.Duration
	Clock           integrity.Clock
}

// session is one mounted candidate assessment.
type session struct {
	id        string
	name      string
	position  string
	variant   models.AssessmentVariant
	startedAt time.Time
	expiresAt *time.Time

	monitor integrity.Monitor
	manager *submission.Manager
	auto    *submission.AutoSubmitter

	mu      sync.Mutex
	status  models.SessionStatus
	prompts []models.CompletedPrompt
	// lastRequest holds the scores the timer and the auto-submit send.
	lastRequest models.SubmitRequest
	timer       *time.Timer
}

type sessionService struct {
	coord     *submission.Coordinator
	publisher events.EventPublisher
	evaluator llm.Evaluator
	usage     *UsageTracker
	validator *validator.Validator
	logger    *slog.Logger
	config    SessionServiceConfig

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessionService(coord *submission.Coordinator, publisher events.EventPublisher, evaluator llm.Evaluator, usage *UsageTracker, v *validator.Validator, logger *slog.Logger, cfg SessionServiceConfig) SessionService {
	if cfg.Clock == nil {
		cfg.Clock = integrity.SystemClock()
	}
	if evaluator == nil {
		evaluator = llm.Disabled{}
	}
	if usage == nil {
		usage = NewUsageTracker(nil)
	}
	return &sessionService{
		coord:     coord,
		publisher: publisher,
		evaluator: evaluator,
		usage:     usage,
		validator: v,
		logger:    logger,
		config:    cfg,
		sessions:  make(map[string]*session),
	}
}

// ===== LIFECYCLE =====

func (s *sessionService) StartSession(ctx context.Context, req *models.StartSessionRequest) (*models.SessionInfo, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	visibility := true
	if req.VisibilityAPI != nil {
		visibility = *req.VisibilityAPI
	}

	monitor, err := integrity.NewMonitor(req.Variant, integrity.Options{
		Clock:         s.config.Clock,
		UserAgent:     req.UserAgent,
		VisibilityAPI: visibility,
	})
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:        uuid.NewString(),
		name:      req.CandidateName,
		position:  req.CandidatePosition,
		variant:   req.Variant,
		startedAt: s.config.Clock.Now(),
		monitor:   monitor,
		manager:   s.coord.NewManager(req.CandidateName, req.CandidatePosition),
		status:    models.SessionActive,
		prompts:   []models.CompletedPrompt{},
	}
	sess.auto = submission.NewAutoSubmitter(sess.manager, s.config.AutoSubmitDelay,
		func() submission.Payload { return s.payload(sess) },
		func(res submission.Result, err error) { s.afterSubmit(context.Background(), sess, res, err, "auto_submit") },
		s.logger)

	if req.TimeLimitSeconds > 0 {
		limit := time.Duration(req.TimeLimitSeconds) * time.Second
		expires := sess.startedAt.Add(limit)
		sess.expiresAt = &expires
		sess.timer = time.AfterFunc(limit, func() { s.expire(sess) })
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session started",
		"session_id", sess.id,
		"variant", sess.variant,
		"visibility_api", visibility,
		"time_limit_seconds", req.TimeLimitSeconds)

	return s.info(sess), nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID string) (*models.SessionInfo, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

func (s *sessionService) EndSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.stop(sess)
	sess.mu.Lock()
	sess.status = models.SessionEnded
	sess.mu.Unlock()

	s.logger.InfoContext(ctx, "Session ended", "session_id", sessionID)
	return nil
}

func (s *sessionService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops every pending timer. Sessions are not submitted.
func (s *sessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		s.stop(sess)
		delete(s.sessions, id)
	}
}

// ===== TRACKING =====

func (s *sessionService) RecordEvents(ctx context.Context, sessionID string, evs []models.BrowserEvent) (*models.EventsResult, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.status == models.SessionEnded {
		sess.mu.Unlock()
		return nil, ErrSessionEnded
	}
	result := &models.EventsResult{
		Prevented: make([]bool, len(evs)),
		Flags:     []models.SuspicionReason{},
	}
	for i, ev := range evs {
		outcome := s.handleEvent(ctx, sess, ev)
		result.Prevented[i] = outcome.Prevented
		result.Flags = append(result.Flags, outcome.Flags...)
	}
	sess.mu.Unlock()

	for _, f := range result.Flags {
		s.publishFlag(ctx, sess, f)
	}

	result.Metrics = sess.monitor.AssessmentMetrics()
	return result, nil
}

// handleEvent never lets a tracker failure reach the candidate.
func (s *sessionService) handleEvent(ctx context.Context, sess *session, ev models.BrowserEvent) (outcome integrity.EventOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WarnContext(ctx, "Integrity tracking failed",
				"session_id", sess.id,
				"event_type", ev.Type,
				"panic", fmt.Sprint(r))
			outcome = integrity.EventOutcome{Prevented: alwaysPrevented(ev.Type)}
		}
	}()
	return sess.monitor.HandleEvent(ev)
}

func alwaysPrevented(t models.BrowserEventType) bool {
	switch t {
	case models.EventCopy, models.EventCut, models.EventPaste, models.EventContextMenu:
		return true
	}
	return false
}

func (s *sessionService) publishFlag(ctx context.Context, sess *session, f models.SuspicionReason) {
	event := events.NewEvent(events.EventSuspiciousActivity, events.SuspiciousActivityEvent{
		SessionID:         sess.id,
		CandidateName:     sess.name,
		CandidatePosition: sess.position,
		Variant:           string(sess.variant),
		Kind:              string(f.Kind),
		Detail:            f.Detail,
		At:                f.At,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish suspicious activity",
			"session_id", sess.id,
			"kind", f.Kind,
			"error", err)
	}
}

func (s *sessionService) StartPrompt(ctx context.Context, sessionID string) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	sess.monitor.StartPrompt()
	return nil
}

func (s *sessionService) Metrics(ctx context.Context, sessionID string) (*models.AntiCheatingMetrics, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	m := sess.monitor.AssessmentMetrics()
	return &m, nil
}

func (s *sessionService) ResetMetrics(ctx context.Context, sessionID string) (*models.AntiCheatingMetrics, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	r, ok := sess.monitor.(integrity.Resetter)
	if !ok {
		return nil, ErrResetNotSupported
	}

	r.ResetMetrics()
	s.logger.InfoContext(ctx, "Session metrics reset", "session_id", sessionID)

	m := sess.monitor.AssessmentMetrics()
	return &m, nil
}

// ===== PROMPTS =====

func (s *sessionService) CompletePrompt(ctx context.Context, sessionID string, prompt *models.CompletedPrompt) (*models.SessionInfo, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.status == models.SessionEnded {
		sess.mu.Unlock()
		return nil, ErrSessionEnded
	}
	if err := s.validator.ValidateCompletedPrompt(prompt, sess.prompts); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.prompts = append(sess.prompts, *prompt)
	count := len(sess.prompts)
	sess.mu.Unlock()

	s.logger.DebugContext(ctx, "Prompt completed",
		"session_id", sessionID,
		"prompt_id", prompt.PromptID,
		"completed", count)

	return s.info(sess), nil
}

func (s *sessionService) EvaluatePrompt(ctx context.Context, sessionID, promptID string) (*models.WritingEvaluation, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	idx := -1
	for i, p := range sess.prompts {
		if p.PromptID == promptID {
			idx = i
			break
		}
	}
	if idx < 0 {
		sess.mu.Unlock()
		return nil, ErrPromptNotFound
	}
	prompt := sess.prompts[idx]
	sess.mu.Unlock()

	start := time.Now()
	eval, err := s.evaluator.EvaluateWriting(ctx, prompt.Prompt, prompt.Response)
	s.usage.Record(OpEvaluateWriting, time.Since(start), err)
	if err != nil {
		s.logger.WarnContext(ctx, "Writing evaluation failed",
			"session_id", sessionID,
			"prompt_id", promptID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	sess.mu.Lock()
	for i := range sess.prompts {
		if sess.prompts[i].PromptID == promptID {
			score := eval.Score
			sess.prompts[i].Score = &score
			sess.prompts[i].Feedback = eval.Feedback
		}
	}
	sess.mu.Unlock()

	return eval, nil
}

// ===== SUBMISSION =====

func (s *sessionService) Submit(ctx context.Context, sessionID string, req *models.SubmitRequest) (*models.SubmissionResult, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	// a submitted session answers with its id whatever the new request holds
	if st := sess.manager.State(); st.IsSubmitted && st.AssessmentID != "" {
		return &models.SubmissionResult{
			AssessmentID: st.AssessmentID,
			Existing:     true,
			State:        st,
		}, nil
	}

	sess.mu.Lock()
	if err := s.validator.ValidateSubmit(req, sess.prompts); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.lastRequest = *req
	sess.mu.Unlock()

	res, err := sess.manager.Submit(ctx, s.payload(sess))
	s.afterSubmit(ctx, sess, res, err, "manual")
	if err != nil {
		return nil, err
	}

	return &models.SubmissionResult{
		AssessmentID: res.AssessmentID,
		Existing:     res.Existing,
		State:        sess.manager.State(),
	}, nil
}

func (s *sessionService) Finish(ctx context.Context, sessionID string, req *models.SubmitRequest) (*models.SessionInfo, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	if req != nil {
		sess.mu.Lock()
		if err := s.validator.ValidateSubmit(req, sess.prompts); err != nil {
			sess.mu.Unlock()
			return nil, err
		}
		sess.lastRequest = *req
		sess.mu.Unlock()
	}

	sess.auto.Arm(ctx)
	return s.info(sess), nil
}

func (s *sessionService) SubmissionState(ctx context.Context, sessionID string) (*models.SubmissionState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	st := sess.manager.State()
	return &st, nil
}

func (s *sessionService) ClearSubmissionError(ctx context.Context, sessionID string) (*models.SubmissionState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.manager.ClearError()
	st := sess.manager.State()
	return &st, nil
}

// expire submits the session when its time limit runs out.
func (s *sessionService) expire(sess *session) {
	ctx := context.Background()
	s.logger.InfoContext(ctx, "Session time limit reached", "session_id", sess.id)

	res, err := sess.manager.Submit(ctx, s.payload(sess))
	s.afterSubmit(ctx, sess, res, err, "timer")
}

// payload is the final capture point of the metrics.
func (s *sessionService) payload(sess *session) submission.Payload {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	metrics := sess.monitor.AssessmentMetrics()
	var scores []models.WritingScore
	if sess.lastRequest.WritingScores != nil {
		scores = append([]models.WritingScore{}, sess.lastRequest.WritingScores...)
	}
	return submission.Payload{
		CompletedPrompts: append([]models.CompletedPrompt{}, sess.prompts...),
		AptitudeScore:    sess.lastRequest.AptitudeScore,
		AptitudeTotal:    sess.lastRequest.AptitudeTotal,
		WritingScores:    scores,
		Metrics:          &metrics,
	}
}

func (s *sessionService) afterSubmit(ctx context.Context, sess *session, res submission.Result, err error, trigger string) {
	if err != nil {
		if !errors.Is(err, submission.ErrDuplicateSubmission) {
			s.logger.WarnContext(ctx, "Submit attempt failed",
				"session_id", sess.id,
				"trigger", trigger,
				"error", err)
		}
		return
	}

	sess.mu.Lock()
	sess.status = models.SessionSubmitted
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	sess.mu.Unlock()

	s.logger.InfoContext(ctx, "Session submitted",
		"session_id", sess.id,
		"trigger", trigger,
		"assessment_id", res.AssessmentID,
		"existing", res.Existing)
}

// ===== HELPERS =====

func (s *sessionService) get(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *sessionService) stop(sess *session) {
	sess.auto.Stop()
	sess.mu.Lock()
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	sess.mu.Unlock()
}

func (s *sessionService) info(sess *session) *models.SessionInfo {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return &models.SessionInfo{
		ID:                sess.id,
		CandidateName:     sess.name,
		CandidatePosition: sess.position,
		Variant:           sess.variant,
		Status:            sess.status,
		StartedAt:         sess.startedAt,
		ExpiresAt:         sess.expiresAt,
		CompletedPrompts:  len(sess.prompts),
		Submission:        sess.manager.State(),
	}
}
