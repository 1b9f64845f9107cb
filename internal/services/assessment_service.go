package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/integrity"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

type assessmentService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAssessmentService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator) AssessmentService {
	return &assessmentService{
		repo:      repo,
		logger:    logger,
		validator: v,
	}
}

func (s *assessmentService) List(ctx context.Context, params *models.ListAssessmentsParams) (*models.PaginatedResponse, error) {
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}

	records, total, err := s.repo.Assessment().List(ctx, nil, toFilters(params))
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	summaries := make([]models.AssessmentSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, toSummary(r))
	}

	resp := models.NewPaginatedResponse(summaries, len(summaries), total, params.Page, params.Size)
	return &resp, nil
}

func (s *assessmentService) GetByID(ctx context.Context, id string) (*models.AssessmentDetail, error) {
	record, err := loadAssessment(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	detail := toDetail(record)
	return &detail, nil
}

func loadAssessment(ctx context.Context, repo repositories.Repository, id string) (*models.CandidateAssessment, error) {
	record, err := repo.Assessment().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return record, nil
}

func toFilters(p *models.ListAssessmentsParams) repositories.AssessmentFilters {
	return repositories.AssessmentFilters{
		SuspiciousOnly: p.SuspiciousOnly,
		Position:       p.Position,
		Search:         p.Search,
		Limit:          p.Size,
		Offset:         p.Page * p.Size,
		SortOrder:      p.SortDir,
	}
}

func decodePrompts(r *models.CandidateAssessment) []models.CompletedPrompt {
	prompts := []models.CompletedPrompt{}
	if len(r.CompletedPrompts) > 0 {
		if err := json.Unmarshal(r.CompletedPrompts, &prompts); err != nil {
			slog.Warn("Corrupt completed prompts document", "assessment_id", r.ID, "error", err)
			return []models.CompletedPrompt{}
		}
	}
	return prompts
}

func decodeScores(r *models.CandidateAssessment) []models.WritingScore {
	scores := []models.WritingScore{}
	if len(r.WritingScores) > 0 {
		if err := json.Unmarshal(r.WritingScores, &scores); err != nil {
			slog.Warn("Corrupt writing scores document", "assessment_id", r.ID, "error", err)
			return []models.WritingScore{}
		}
	}
	return scores
}

// averageWritingScore prefers the submitted writing scores and falls back to
// the per-prompt scores.
func averageWritingScore(prompts []models.CompletedPrompt, scores []models.WritingScore) *float64 {
	var sum float64
	n := 0
	if len(scores) > 0 {
		for _, s := range scores {
			sum += s.Score
			n++
		}
	} else {
		for _, p := range prompts {
			if p.Score != nil {
				sum += *p.Score
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func toSummary(r *models.CandidateAssessment) models.AssessmentSummary {
	prompts := decodePrompts(r)
	metrics := integrity.SanitizeJSON(r.Metrics, prompts)
	return models.AssessmentSummary{
		ID:                       r.ID,
		CandidateName:            r.CandidateName,
		CandidatePosition:        r.CandidatePosition,
		AptitudeScore:            r.AptitudeScore,
		AptitudeTotal:            r.AptitudeTotal,
		PromptCount:              len(prompts),
		AverageWritingScore:      averageWritingScore(prompts, decodeScores(r)),
		SuspiciousActivity:       r.SuspiciousActivity || metrics.SuspiciousActivity,
		SuspiciousActivityDetail: metrics.SuspiciousActivityDetail,
		CreatedAt:                r.CreatedAt,
	}
}

func toDetail(r *models.CandidateAssessment) models.AssessmentDetail {
	prompts := decodePrompts(r)
	return models.AssessmentDetail{
		ID:                r.ID,
		CandidateName:     r.CandidateName,
		CandidatePosition: r.CandidatePosition,
		AptitudeScore:     r.AptitudeScore,
		AptitudeTotal:     r.AptitudeTotal,
		CompletedPrompts:  prompts,
		WritingScores:     decodeScores(r),
		Metrics:           integrity.SanitizeJSON(r.Metrics, prompts),
		CreatedAt:         r.CreatedAt,
	}
}
