package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/llm"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryAssessments is an in-memory AssessmentRepository keyed like the
// unique submission_key index.
type memoryAssessments struct {
	mu    sync.Mutex
	byID  map[string]*models.CandidateAssessment
	byKey map[string]string
	seq   int
	now   time.Time

	err     error
	listErr error
}

func newMemoryAssessments() *memoryAssessments {
	return &memoryAssessments{
		byID:  map[string]*models.CandidateAssessment{},
		byKey: map[string]string{},
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memoryAssessments) CreateOrGet(_ context.Context, _ *gorm.DB, a *models.CandidateAssessment) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", false, m.err
	}
	if id, ok := m.byKey[a.SubmissionKey]; ok {
		return id, true, nil
	}
	m.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("a%03d", m.seq)
	}
	a.CreatedAt = m.now.Add(time.Duration(m.seq) * time.Minute)
	cp := *a
	m.byID[a.ID] = &cp
	m.byKey[a.SubmissionKey] = a.ID
	return a.ID, false, nil
}

func (m *memoryAssessments) GetByID(_ context.Context, _ *gorm.DB, id string) (*models.CandidateAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("failed to get assessment: %w", repositories.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memoryAssessments) GetBySubmissionKey(ctx context.Context, tx *gorm.DB, key string) (*models.CandidateAssessment, error) {
	m.mu.Lock()
	id, ok := m.byKey[key]
	m.mu.Unlock()
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return m.GetByID(ctx, tx, id)
}

func (m *memoryAssessments) List(_ context.Context, _ *gorm.DB, f repositories.AssessmentFilters) ([]*models.CandidateAssessment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var matched []*models.CandidateAssessment
	for _, a := range m.byID {
		if f.SuspiciousOnly && !a.SuspiciousActivity {
			continue
		}
		if f.Position != "" && !strings.EqualFold(a.CandidatePosition, f.Position) {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset >= len(matched) {
		return []*models.CandidateAssessment{}, total, nil
	}
	end := min(f.Offset+f.Limit, len(matched))
	return matched[f.Offset:end], total, nil
}

func (m *memoryAssessments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memoryRepository struct {
	assessments *memoryAssessments
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{assessments: newMemoryAssessments()}
}

func (r *memoryRepository) Assessment() repositories.AssessmentRepository { return r.assessments }
func (r *memoryRepository) User() repositories.UserRepository             { return nil }
func (r *memoryRepository) Ping(ctx context.Context) error { return nil }
func (r *memoryRepository) Close() error                   { return nil }

// fakeEvaluator answers AI calls from functions.
type fakeEvaluator struct {
	mu        sync.Mutex
	calls     map[string]int
	evaluate  func() (*models.WritingEvaluation, error)
	insights  func(call int) (*models.Insights, error)
	narrative func(call int) (*models.IntegrityNarrative, error)
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{
		calls: map[string]int{},
		evaluate: func() (*models.WritingEvaluation, error) {
			return &models.WritingEvaluation{Score: 4, Feedback: "clear"}, nil
		},
		insights: func(int) (*models.Insights, error) {
			return &models.Insights{Summary: "solid", Strengths: []string{"structure"}, Weaknesses: []string{}}, nil
		},
		narrative: func(int) (*models.IntegrityNarrative, error) {
			return &models.IntegrityNarrative{RiskLevel: "low", Summary: "nothing unusual", Concerns: []string{}}, nil
		},
	}
}

func (f *fakeEvaluator) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.calls[op]
}

func (f *fakeEvaluator) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeEvaluator) EvaluateWriting(context.Context, string, string) (*models.WritingEvaluation, error) {
	f.count(OpEvaluateWriting)
	return f.evaluate()
}

func (f *fakeEvaluator) GenerateInsights(context.Context, llm.InsightRequest) (*models.Insights, error) {
	return f.insights(f.count(OpGenerateInsights))
}

func (f *fakeEvaluator) GenerateIntegrityNarrative(context.Context, llm.InsightRequest) (*models.IntegrityNarrative, error) {
	return f.narrative(f.count(OpIntegrityNarrative))
}
