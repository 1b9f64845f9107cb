package services

import (
	"context"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

// SessionService runs live candidate sessions. Each session composes the
// integrity trackers and a submission manager.
type SessionService interface {
	StartSession(ctx context.Context, req *models.StartSessionRequest) (*models.SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*models.SessionInfo, error)
	RecordEvents(ctx context.Context, sessionID string, evs []models.BrowserEvent) (*models.EventsResult, error)
	StartPrompt(ctx context.Context, sessionID string) error
	CompletePrompt(ctx context.Context, sessionID string, prompt *models.CompletedPrompt) (*models.SessionInfo, error)
	EvaluatePrompt(ctx context.Context, sessionID, promptID string) (*models.WritingEvaluation, error)
	Metrics(ctx context.Context, sessionID string) (*models.AntiCheatingMetrics, error)
	ResetMetrics(ctx context.Context, sessionID string) (*models.AntiCheatingMetrics, error)

	Submit(ctx context.Context, sessionID string, req *models.SubmitRequest) (*models.SubmissionResult, error)
	// Finish arms the automatic submit of the results page.
	Finish(ctx context.Context, sessionID string, req *models.SubmitRequest) (*models.SessionInfo, error)
	SubmissionState(ctx context.Context, sessionID string) (*models.SubmissionState, error)
	ClearSubmissionError(ctx context.Context, sessionID string) (*models.SubmissionState, error)
	EndSession(ctx context.Context, sessionID string) error

	ActiveSessions() int
	Close()
}

// AssessmentService reads persisted assessments for the admin dashboard.
type AssessmentService interface {
	List(ctx context.Context, params *models.ListAssessmentsParams) (*models.PaginatedResponse, error)
	GetByID(ctx context.Context, id string) (*models.AssessmentDetail, error)
}

type InsightService interface {
	Generate(ctx context.Context, assessmentID string) (*models.AssessmentInsights, error)
}

// RecoveryService is the operator escape hatch for stuck analysis markers.
type RecoveryService interface {
	FindStuck(ctx context.Context) ([]models.StuckAnalysis, error)
	EmergencyReset(ctx context.Context) (*models.RecoveryResult, error)
}

type ExportService interface {
	ExportIntegrityReport(ctx context.Context, filters repositories.AssessmentFilters) ([]byte, error)
}

// ServiceManager interface for managing all services
type ServiceManager interface {
	Session() SessionService
	Assessment() AssessmentService
	Insight() InsightService
	Recovery() RecoveryService
	Export() ExportService
	Usage() *UsageTracker

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
