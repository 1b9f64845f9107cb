package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

var ErrNotFound = errors.New("record not found")

// ===== SHARED FILTER STRUCTS =====

type AssessmentFilters struct {
	SuspiciousOnly bool   `json:"suspicious_only"`
	Position       string `json:"position"`
	Search         string `json:"search"` // candidate name substring
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
	SortOrder      string `json:"sort_order"` // "asc", "desc" on created_at
}

// AssessmentRepository persists submitted candidate assessments.
type AssessmentRepository interface {
	// CreateOrGet inserts a; when a row with the same SubmissionKey already
	// exists it returns that row's ID and existing=true instead.
	CreateOrGet(ctx context.Context, tx *gorm.DB, a *models.CandidateAssessment) (id string, existing bool, err error)

	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.CandidateAssessment, error)
	GetBySubmissionKey(ctx context.Context, tx *gorm.DB, key string) (*models.CandidateAssessment, error)
	List(ctx context.Context, tx *gorm.DB, filters AssessmentFilters) ([]*models.CandidateAssessment, int64, error)
}
