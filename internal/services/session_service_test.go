package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/events"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/integrity"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/submission"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

type sessionFixture struct {
	svc       SessionService
	repo      *memoryRepository
	publisher *events.MockEventPublisher
	evaluator *fakeEvaluator
	store     cache.Store
}

func newSessionFixture(t *testing.T, delay time.Duration) *sessionFixture {
	t.Helper()

	logger := testLogger()
	repo := newMemoryRepository()
	publisher := events.NewMockEventPublisher(logger)
	evaluator := newFakeEvaluator()
	store := cache.NewMemoryStore()

	coord := submission.NewCoordinator(store, NewAssessmentSaver(repo), submission.Options{
		Notifier: &submittedNotifier{publisher: publisher, logger: logger},
		Logger:   logger,
	})
	svc := NewSessionService(coord, publisher, evaluator, NewUsageTracker(nil), validator.New(), logger, SessionServiceConfig{
		AutoSubmitDelay: delay,
	})
	t.Cleanup(svc.Close)

	return &sessionFixture{svc: svc, repo: repo, publisher: publisher, evaluator: evaluator, store: store}
}

func startRequest(variant models.AssessmentVariant) *models.StartSessionRequest {
	return &models.StartSessionRequest{
		CandidateName:     "Ada Lovelace",
		CandidatePosition: "Engineer",
		Variant:           variant,
		UserAgent:         "test-agent",
	}
}

func completedPrompt(id string) *models.CompletedPrompt {
	return &models.CompletedPrompt{PromptID: id, Prompt: "Describe a project", Response: "I built an engine", WordCount: 4}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSessionService_WritingFlow(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	info, err := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if info.Status != models.SessionActive || info.Variant != models.VariantWriting {
		t.Fatalf("unexpected session %+v", info)
	}

	if _, err := f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1")); err != nil {
		t.Fatalf("CompletePrompt: %v", err)
	}

	res, err := f.svc.RecordEvents(ctx, info.ID, []models.BrowserEvent{
		{Type: models.EventKeyDown, Key: "a"},
		{Type: models.EventPaste},
		{Type: models.EventCopy},
	})
	if err != nil {
		t.Fatalf("RecordEvents: %v", err)
	}
	if want := []bool{false, true, true}; len(res.Prevented) != 3 || res.Prevented[0] != want[0] || res.Prevented[1] != want[1] || res.Prevented[2] != want[2] {
		t.Errorf("Prevented = %v, want %v", res.Prevented, want)
	}
	if len(res.Flags) != 1 || res.Flags[0].Kind != models.SuspicionPasteAttempt {
		t.Fatalf("expected a single paste flag, got %+v", res.Flags)
	}
	if res.Metrics.PasteAttempts != 1 || res.Metrics.CopyAttempts != 1 || !res.Metrics.SuspiciousActivity {
		t.Errorf("unexpected metrics %+v", res.Metrics.PreventionMetrics)
	}
	if got := len(f.publisher.EventsOfType(events.EventSuspiciousActivity)); got != 1 {
		t.Errorf("suspicious activity events = %d, want 1", got)
	}

	sub, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{AptitudeScore: 7, AptitudeTotal: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.AssessmentID == "" || sub.Existing || !sub.State.IsSubmitted {
		t.Errorf("unexpected result %+v", sub)
	}

	again, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{AptitudeScore: 7, AptitudeTotal: 10})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if again.AssessmentID != sub.AssessmentID || !again.Existing {
		t.Errorf("second submit = %+v, want existing %s", again, sub.AssessmentID)
	}
	if f.repo.assessments.count() != 1 {
		t.Errorf("rows = %d, want 1", f.repo.assessments.count())
	}
	if got := len(f.publisher.EventsOfType(events.EventAssessmentSubmitted)); got != 1 {
		t.Errorf("submitted events = %d, want 1", got)
	}

	record, _ := f.repo.assessments.GetByID(ctx, nil, sub.AssessmentID)
	if !record.SuspiciousActivity || record.AptitudeScore != 7 {
		t.Errorf("unexpected record %+v", record)
	}

	got, _ := f.svc.GetSession(ctx, info.ID)
	if got.Status != models.SessionSubmitted {
		t.Errorf("status = %q, want submitted", got.Status)
	}
}

func TestSessionService_SubmitWithoutPrompts(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))

	_, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{})
	var se *submission.Error
	if !errors.As(err, &se) || se.Kind != submission.KindNoCompletedPrompts {
		t.Fatalf("expected no_completed_prompts, got %v", err)
	}

	st, _ := f.svc.SubmissionState(ctx, info.ID)
	if st.SubmissionError == "" || st.IsSubmitted || st.SubmissionLock {
		t.Errorf("unexpected state %+v", st)
	}

	st, _ = f.svc.ClearSubmissionError(ctx, info.ID)
	if st.SubmissionError != "" {
		t.Errorf("error not cleared: %+v", st)
	}

	if _, err := f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1")); err != nil {
		t.Fatalf("CompletePrompt: %v", err)
	}
	if _, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{}); err != nil {
		t.Fatalf("manual retry: %v", err)
	}
}

func TestSessionService_SubmitValidation(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))

	_, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{
		WritingScores: []models.WritingScore{{PromptID: "unknown", Score: 3}},
	})
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if f.repo.assessments.count() != 0 {
		t.Error("invalid submit must not save")
	}
}

func TestSessionService_ConcurrentSubmitSavesOnce(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))

	var wg sync.WaitGroup
	ids := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{})
			if err == nil {
				ids <- res.AssessmentID
			} else if !errors.Is(err, submission.ErrDuplicateSubmission) {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()
	close(ids)

	first := ""
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Errorf("concurrent submits returned %s and %s", first, id)
		}
	}
	if f.repo.assessments.count() != 1 {
		t.Errorf("rows = %d, want 1", f.repo.assessments.count())
	}
}

func TestSessionService_SecondSessionReusesSubmission(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	first, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, first.ID, completedPrompt("p1"))
	res, err := f.svc.Submit(ctx, first.ID, &models.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// same candidate, different casing and spacing
	req := startRequest(models.VariantWriting)
	req.CandidateName = "  ada lovelace "
	second, _ := f.svc.StartSession(ctx, req)
	f.svc.CompletePrompt(ctx, second.ID, completedPrompt("p1"))

	again, err := f.svc.Submit(ctx, second.ID, &models.SubmitRequest{})
	if err != nil {
		t.Fatalf("second session Submit: %v", err)
	}
	if again.AssessmentID != res.AssessmentID || !again.Existing {
		t.Errorf("second session got %+v, want existing %s", again, res.AssessmentID)
	}
}

func TestSessionService_LostRecordDoesNotRepublish(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	first, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, first.ID, completedPrompt("p1"))
	res, err := f.svc.Submit(ctx, first.ID, &models.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// the KV entries expire or are flushed while the row stays
	f.store.Delete(ctx,
		submission.SubmissionKey("Ada Lovelace", "Engineer"),
		submission.LockKey("Ada Lovelace", "Engineer"))

	second, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, second.ID, completedPrompt("p1"))
	again, err := f.svc.Submit(ctx, second.ID, &models.SubmitRequest{})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if again.AssessmentID != res.AssessmentID || !again.Existing {
		t.Errorf("second submit got %+v, want existing %s", again, res.AssessmentID)
	}
	if f.repo.assessments.count() != 1 {
		t.Errorf("rows = %d, want 1", f.repo.assessments.count())
	}
	if got := len(f.publisher.EventsOfType(events.EventAssessmentSubmitted)); got != 1 {
		t.Errorf("expected one assessment.submitted event, got %d", got)
	}
}

func TestSessionService_ResubmitIgnoresNewRequest(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))
	res, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	again, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{
		WritingScores: []models.WritingScore{{PromptID: "unknown", Score: 99}},
	})
	if err != nil {
		t.Fatalf("resubmit with a stale request: %v", err)
	}
	if again.AssessmentID != res.AssessmentID || !again.Existing || !again.State.IsSubmitted {
		t.Errorf("resubmit got %+v, want existing %s", again, res.AssessmentID)
	}
	if f.repo.assessments.count() != 1 {
		t.Errorf("rows = %d, want 1", f.repo.assessments.count())
	}
}

func TestSessionService_FinishAutoSubmits(t *testing.T) {
	f := newSessionFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantAptitude))
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))

	if _, err := f.svc.Finish(ctx, info.ID, &models.SubmitRequest{AptitudeScore: 9, AptitudeTotal: 12}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	waitFor(t, func() bool {
		st, _ := f.svc.SubmissionState(ctx, info.ID)
		return st.IsSubmitted
	})

	st, _ := f.svc.SubmissionState(ctx, info.ID)
	record, err := f.repo.assessments.GetByID(ctx, nil, st.AssessmentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record.AptitudeScore != 9 || record.AptitudeTotal != 12 {
		t.Errorf("auto-submit saved %d/%d, want 9/12", record.AptitudeScore, record.AptitudeTotal)
	}
}

func TestSessionService_TimeLimitSubmits(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	req := startRequest(models.VariantWriting)
	req.TimeLimitSeconds = 1
	info, _ := f.svc.StartSession(ctx, req)
	if info.ExpiresAt == nil {
		t.Fatal("expected an expiry time")
	}
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))

	waitFor(t, func() bool { return f.repo.assessments.count() == 1 })

	got, _ := f.svc.GetSession(ctx, info.ID)
	if got.Status != models.SessionSubmitted {
		t.Errorf("status = %q, want submitted", got.Status)
	}
}

func TestSessionService_ResetMetrics(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	writing, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	if _, err := f.svc.ResetMetrics(ctx, writing.ID); !errors.Is(err, ErrResetNotSupported) {
		t.Errorf("writing reset err = %v, want ErrResetNotSupported", err)
	}

	aptitude, _ := f.svc.StartSession(ctx, startRequest(models.VariantAptitude))
	res, _ := f.svc.RecordEvents(ctx, aptitude.ID, []models.BrowserEvent{{Type: models.EventCopy}})
	if len(res.Flags) != 1 || res.Flags[0].Kind != models.SuspicionCopyAttempt {
		t.Fatalf("expected one copy flag, got %+v", res.Flags)
	}

	m, err := f.svc.ResetMetrics(ctx, aptitude.ID)
	if err != nil {
		t.Fatalf("ResetMetrics: %v", err)
	}
	if m.CopyAttempts != 0 || m.SuspiciousActivity || len(m.SuspiciousActivities) != 0 {
		t.Errorf("metrics not reset: %+v", m)
	}
}

func TestSessionService_EvaluatePrompt(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))

	if _, err := f.svc.EvaluatePrompt(ctx, info.ID, "missing"); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("err = %v, want ErrPromptNotFound", err)
	}

	eval, err := f.svc.EvaluatePrompt(ctx, info.ID, "p1")
	if err != nil {
		t.Fatalf("EvaluatePrompt: %v", err)
	}
	if eval.Score != 4 {
		t.Errorf("score = %v, want 4", eval.Score)
	}

	f.evaluator.evaluate = func() (*models.WritingEvaluation, error) { return nil, errors.New("upstream down") }
	if _, err := f.svc.EvaluatePrompt(ctx, info.ID, "p1"); !errors.Is(err, ErrAIUnavailable) {
		t.Errorf("err = %v, want ErrAIUnavailable", err)
	}

	res, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	detail := toDetail(mustGet(t, f.repo, res.AssessmentID))
	if detail.CompletedPrompts[0].Score == nil || *detail.CompletedPrompts[0].Score != 4 {
		t.Errorf("prompt score not persisted: %+v", detail.CompletedPrompts[0])
	}
}

func TestSessionService_UnknownAndEnded(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	if _, err := f.svc.Metrics(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	if err := f.svc.EndSession(ctx, info.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := f.svc.RecordEvents(ctx, info.ID, []models.BrowserEvent{{Type: models.EventBlur}}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if f.svc.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions = %d, want 0", f.svc.ActiveSessions())
	}
}

func TestSessionService_PublishFailureIsSwallowed(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	f.publisher.FailWith(errors.New("broker down"))

	info, _ := f.svc.StartSession(ctx, startRequest(models.VariantWriting))
	f.svc.CompletePrompt(ctx, info.ID, completedPrompt("p1"))

	if _, err := f.svc.RecordEvents(ctx, info.ID, []models.BrowserEvent{{Type: models.EventPaste}}); err != nil {
		t.Fatalf("RecordEvents: %v", err)
	}
	if _, err := f.svc.Submit(ctx, info.ID, &models.SubmitRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

type panickingMonitor struct{ integrity.Monitor }

func (panickingMonitor) HandleEvent(models.BrowserEvent) integrity.EventOutcome {
	panic("tracker exploded")
}

func TestSessionService_TrackerPanicRecovered(t *testing.T) {
	svc := &sessionService{logger: testLogger()}
	sess := &session{id: "s1", monitor: panickingMonitor{}}

	out := svc.handleEvent(context.Background(), sess, models.BrowserEvent{Type: models.EventPaste})
	if !out.Prevented {
		t.Error("clipboard events stay prevented when tracking fails")
	}
	out = svc.handleEvent(context.Background(), sess, models.BrowserEvent{Type: models.EventKeyDown, Key: "a"})
	if out.Prevented {
		t.Error("plain keys must not be prevented")
	}
}

func mustGet(t *testing.T, repo *memoryRepository, id string) *models.CandidateAssessment {
	t.Helper()
	a, err := repo.assessments.GetByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return a
}
