package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/submission"
)

func seedAssessment(t *testing.T, repo *memoryRepository, name, position string, suspicious bool) string {
	t.Helper()

	metrics := models.AntiCheatingMetrics{}
	metrics.Keystrokes = 120
	metrics.TabSwitches = 1
	if suspicious {
		metrics.TabSwitches = 4
		metrics.SuspiciousActivity = true
		metrics.SuspiciousActivities = []string{"Frequent tab switching detected (4 switches)"}
	}

	saved, err := NewAssessmentSaver(repo).Save(context.Background(), submission.SaveRequest{
		SubmissionKey:     submission.SubmissionKey(name, position),
		CandidateName:     name,
		CandidatePosition: position,
		CompletedPrompts:  []models.CompletedPrompt{*completedPrompt("p1")},
		AptitudeScore:     8,
		AptitudeTotal:     10,
		WritingScores:     []models.WritingScore{{PromptID: "p1", Score: 4, Feedback: "clear"}},
		Metrics:           metrics,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return saved.ID
}

type insightFixture struct {
	svc       InsightService
	repo      *memoryRepository
	evaluator *fakeEvaluator
	state     cache.Store
	usage     *UsageTracker
}

func newInsightFixture() *insightFixture {
	repo := newMemoryRepository()
	evaluator := newFakeEvaluator()
	state := cache.NewMemoryStore()
	usage := NewUsageTracker(nil)
	svc := NewInsightService(repo, evaluator, state, cache.NewService(cache.NewMemoryStore(), time.Minute, testLogger()), usage, testLogger(),
		InsightServiceConfig{BackoffBase: time.Millisecond, BackoffCap: 2 * time.Millisecond})
	return &insightFixture{svc: svc, repo: repo, evaluator: evaluator, state: state, usage: usage}
}

var errRateLimited = errors.New("429 Too Many Requests: rate limit reached")

func TestInsightService_Parallel(t *testing.T) {
	f := newInsightFixture()
	ctx := context.Background()
	id := seedAssessment(t, f.repo, "Ada", "Engineer", true)

	res, err := f.svc.Generate(ctx, id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Sequential {
		t.Error("parallel run must not be marked sequential")
	}
	if res.Insights.Summary != "solid" || res.Integrity.RiskLevel != "low" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.AssessmentID != id || res.GeneratedAt.IsZero() {
		t.Errorf("missing identity fields: %+v", res)
	}

	if ok, _ := f.state.Exists(ctx, AnalysisInProgressPrefix+id); ok {
		t.Error("analysis marker left behind")
	}
	if ok, _ := f.state.Exists(ctx, InsightGenerationPrefix+id); ok {
		t.Error("generation marker left behind")
	}
}

func TestInsightService_CachedResult(t *testing.T) {
	f := newInsightFixture()
	ctx := context.Background()
	id := seedAssessment(t, f.repo, "Ada", "Engineer", false)

	if _, err := f.svc.Generate(ctx, id); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.svc.Generate(ctx, id); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if n := f.evaluator.Calls(OpGenerateInsights); n != 1 {
		t.Errorf("insight calls = %d, want 1", n)
	}
}

func TestInsightService_RateLimitFallsBackToSequential(t *testing.T) {
	f := newInsightFixture()
	ctx := context.Background()
	id := seedAssessment(t, f.repo, "Ada", "Engineer", false)

	// parallel attempt and first sequential attempt are rate limited
	f.evaluator.insights = func(call int) (*models.Insights, error) {
		if call <= 2 {
			return nil, errRateLimited
		}
		return &models.Insights{Summary: "recovered"}, nil
	}

	res, err := f.svc.Generate(ctx, id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Sequential {
		t.Error("expected the sequential fallback")
	}
	if res.Insights.Summary != "recovered" {
		t.Errorf("summary = %q", res.Insights.Summary)
	}
	if n := f.evaluator.Calls(OpGenerateInsights); n != 3 {
		t.Errorf("insight calls = %d, want 3", n)
	}
	if snap := f.usage.Snapshot(); snap.RateLimited != 2 {
		t.Errorf("rate limited = %d, want 2", snap.RateLimited)
	}
}

func TestInsightService_RateLimitExhausted(t *testing.T) {
	f := newInsightFixture()
	id := seedAssessment(t, f.repo, "Ada", "Engineer", false)

	f.evaluator.narrative = func(int) (*models.IntegrityNarrative, error) { return nil, errRateLimited }

	_, err := f.svc.Generate(context.Background(), id)
	if !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("err = %v, want ErrAIUnavailable", err)
	}
	// one parallel call plus three sequential attempts
	if n := f.evaluator.Calls(OpIntegrityNarrative); n != 1+1+fallbackRetries {
		t.Errorf("narrative calls = %d, want %d", n, 2+fallbackRetries)
	}
}

func TestInsightService_OtherErrorsDoNotRetry(t *testing.T) {
	f := newInsightFixture()
	id := seedAssessment(t, f.repo, "Ada", "Engineer", false)

	f.evaluator.insights = func(int) (*models.Insights, error) { return nil, errors.New("bad gateway") }

	if _, err := f.svc.Generate(context.Background(), id); !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("err = %v, want ErrAIUnavailable", err)
	}
	if n := f.evaluator.Calls(OpGenerateInsights); n != 1 {
		t.Errorf("insight calls = %d, want 1", n)
	}
}

func TestInsightService_AnalysisInProgress(t *testing.T) {
	f := newInsightFixture()
	ctx := context.Background()
	id := seedAssessment(t, f.repo, "Ada", "Engineer", false)

	f.state.SetNX(ctx, AnalysisInProgressPrefix+id, "1", time.Minute)

	if _, err := f.svc.Generate(ctx, id); !errors.Is(err, ErrAnalysisInProgress) {
		t.Fatalf("err = %v, want ErrAnalysisInProgress", err)
	}
	if n := f.evaluator.Calls(OpGenerateInsights); n != 0 {
		t.Errorf("insight calls = %d, want 0", n)
	}
}

func TestInsightService_NotFound(t *testing.T) {
	f := newInsightFixture()
	if _, err := f.svc.Generate(context.Background(), "missing"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("err = %v, want ErrAssessmentNotFound", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		n    uint
		want time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 10 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.n, DefaultBackoffBase, DefaultBackoffCap); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}
