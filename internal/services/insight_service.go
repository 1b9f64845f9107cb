package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	"golang.org/x/sync/errgroup"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/llm"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

// Marker key prefixes of running analyses. The recovery service scans them.
const (
	AnalysisInProgressPrefix = "analysis_in_progress:"
	InsightGenerationPrefix  = "insight_generation:"

	analysisMarkerTTL = 30 * time.Minute
)

// Sequential fallback backoff.
const (
	DefaultBackoffBase = 2000 * time.Millisecond
	DefaultBackoffCap  = 10000 * time.Millisecond
	fallbackRetries    = 2
)

type InsightServiceConfig struct {
	CacheTTL    time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type insightService struct {
	repo      repositories.Repository
	evaluator llm.Evaluator
	state     cache.Store
	cache     *cache.Service
	usage     *UsageTracker
	logger    *slog.Logger
	config    InsightServiceConfig
	now       func() time.Time
}

func NewInsightService(repo repositories.Repository, evaluator llm.Evaluator, state cache.Store, insightCache *cache.Service, usage *UsageTracker, logger *slog.Logger, cfg InsightServiceConfig) InsightService {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	if usage == nil {
		usage = NewUsageTracker(nil)
	}
	return &insightService{
		repo:      repo,
		evaluator: evaluator,
		state:     state,
		cache:     insightCache,
		usage:     usage,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Generate builds the AI insights of a persisted assessment. Both AI calls
// run in parallel; a rate-limited parallel attempt falls back to sequential
// calls with exponential backoff.
func (s *insightService) Generate(ctx context.Context, assessmentID string) (*models.AssessmentInsights, error) {
	cacheKey := "id:" + assessmentID

	var cached models.AssessmentInsights
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	record, err := loadAssessment(ctx, s.repo, assessmentID)
	if err != nil {
		return nil, err
	}

	marker := AnalysisInProgressPrefix + assessmentID
	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	acquired, err := s.state.SetNX(ctx, marker, stamp, analysisMarkerTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to mark analysis: %w", err)
	}
	if !acquired {
		return nil, ErrAnalysisInProgress
	}
	defer cache.SafeDelete(context.WithoutCancel(ctx), s.state, marker)

	prompts := decodePrompts(record)
	req := llm.InsightRequest{
		CandidateName:     record.CandidateName,
		CandidatePosition: record.CandidatePosition,
		AptitudeScore:     record.AptitudeScore,
		AptitudeTotal:     record.AptitudeTotal,
		Prompts:           prompts,
		Metrics:           toDetail(record).Metrics,
	}

	result := &models.AssessmentInsights{AssessmentID: assessmentID}

	err = s.parallel(ctx, assessmentID, req, result)
	if err != nil && llm.IsRateLimit(err) {
		s.logger.WarnContext(ctx, "AI rate limit hit, retrying sequentially",
			"assessment_id", assessmentID,
			"error", err)
		result.Sequential = true
		err = s.sequential(ctx, req, result)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	result.GeneratedAt = s.now()
	if err := s.cache.Set(ctx, cacheKey, result, s.config.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache insights", "assessment_id", assessmentID, "error", err)
	}

	s.logger.InfoContext(ctx, "Insights generated",
		"assessment_id", assessmentID,
		"sequential", result.Sequential,
		"risk_level", result.Integrity.RiskLevel)
	return result, nil
}

func (s *insightService) parallel(ctx context.Context, assessmentID string, req llm.InsightRequest, out *models.AssessmentInsights) error {
	marker := InsightGenerationPrefix + assessmentID
	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.state.SetString(ctx, marker, stamp, analysisMarkerTTL); err != nil {
		s.logger.WarnContext(ctx, "Failed to mark insight generation", "assessment_id", assessmentID, "error", err)
	}
	defer cache.SafeDelete(context.WithoutCancel(ctx), s.state, marker)

	var insights *models.Insights
	var narrative *models.IntegrityNarrative

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		insights, err = s.insights(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		narrative, err = s.narrative(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	out.Insights = *insights
	out.Integrity = *narrative
	return nil
}

func (s *insightService) sequential(ctx context.Context, req llm.InsightRequest, out *models.AssessmentInsights) error {
	var insights *models.Insights
	if err := s.withBackoff(ctx, func() error {
		var err error
		insights, err = s.insights(ctx, req)
		return err
	}); err != nil {
		return err
	}

	var narrative *models.IntegrityNarrative
	if err := s.withBackoff(ctx, func() error {
		var err error
		narrative, err = s.narrative(ctx, req)
		return err
	}); err != nil {
		return err
	}

	out.Insights = *insights
	out.Integrity = *narrative
	return nil
}

// withBackoff retries rate-limited calls: base, 2*base, ... capped.
func (s *insightService) withBackoff(ctx context.Context, fn func() error) error {
	var last error
	var retries uint
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(1+fallbackRetries),
		retry.RetryIf(llm.IsRateLimit),
		retry.DelayType(func(_ uint, _ error, _ retry.DelayContext) time.Duration {
			d := backoffDelay(retries, s.config.BackoffBase, s.config.BackoffCap)
			retries++
			return d
		}),
	)
	err := r.Do(func() error {
		last = fn()
		return last
	})
	if err != nil && last != nil {
		return last
	}
	return err
}

// backoffDelay is the wait before retry n (0-based).
func backoffDelay(n uint, base, maxDelay time.Duration) time.Duration {
	d := base
	for i := uint(0); i < n && d < maxDelay; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

func (s *insightService) insights(ctx context.Context, req llm.InsightRequest) (*models.Insights, error) {
	start := time.Now()
	res, err := s.evaluator.GenerateInsights(ctx, req)
	s.usage.Record(OpGenerateInsights, time.Since(start), err)
	if err == nil && res == nil {
		err = errors.New("empty insights response")
	}
	return res, err
}

func (s *insightService) narrative(ctx context.Context, req llm.InsightRequest) (*models.IntegrityNarrative, error) {
	start := time.Now()
	res, err := s.evaluator.GenerateIntegrityNarrative(ctx, req)
	s.usage.Record(OpIntegrityNarrative, time.Since(start), err)
	if err == nil && res == nil {
		err = errors.New("empty integrity narrative response")
	}
	return res, err
}
