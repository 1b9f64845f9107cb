package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/events"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/submission"
)

// assessmentSaver is the remote save of the submission coordinator.
type assessmentSaver struct {
	repo repositories.Repository
}

func NewAssessmentSaver(repo repositories.Repository) submission.Saver {
	return &assessmentSaver{repo: repo}
}

func (s *assessmentSaver) Save(ctx context.Context, req submission.SaveRequest) (submission.SaveResult, error) {
	record, err := toRecord(req)
	if err != nil {
		return submission.SaveResult{}, err
	}

	id, existing, err := s.repo.Assessment().CreateOrGet(ctx, nil, record)
	if err != nil {
		return submission.SaveResult{}, err
	}
	return submission.SaveResult{ID: id, Existing: existing}, nil
}

func toRecord(req submission.SaveRequest) (*models.CandidateAssessment, error) {
	prompts, err := json.Marshal(req.CompletedPrompts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completed prompts: %w", err)
	}
	metrics, err := json.Marshal(req.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}

	record := &models.CandidateAssessment{
		SubmissionKey:      req.SubmissionKey,
		CandidateName:      req.CandidateName,
		CandidatePosition:  req.CandidatePosition,
		AptitudeScore:      req.AptitudeScore,
		AptitudeTotal:      req.AptitudeTotal,
		CompletedPrompts:   datatypes.JSON(prompts),
		Metrics:            datatypes.JSON(metrics),
		SuspiciousActivity: req.Metrics.SuspiciousActivity,
	}
	if req.WritingScores != nil {
		scores, err := json.Marshal(req.WritingScores)
		if err != nil {
			return nil, fmt.Errorf("failed to encode writing scores: %w", err)
		}
		record.WritingScores = datatypes.JSON(scores)
	}
	return record, nil
}

// submittedNotifier publishes assessment.submitted for every new row.
type submittedNotifier struct {
	publisher events.EventPublisher
	logger    *slog.Logger
}

func (n *submittedNotifier) Submitted(ctx context.Context, req submission.SaveRequest, assessmentID string) {
	event := events.NewEvent(events.EventAssessmentSubmitted, events.AssessmentSubmittedEvent{
		AssessmentID:             assessmentID,
		CandidateName:            req.CandidateName,
		CandidatePosition:        req.CandidatePosition,
		AptitudeScore:            req.AptitudeScore,
		AptitudeTotal:            req.AptitudeTotal,
		SuspiciousActivity:       req.Metrics.SuspiciousActivity,
		SuspiciousActivityDetail: req.Metrics.SuspiciousActivityDetail,
	})
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish submission event",
			"assessment_id", assessmentID,
			"error", err)
	}
}
