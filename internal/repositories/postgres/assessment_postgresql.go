package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AssessmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// CreateOrGet inserts an assessment unless one with the same submission key
// already exists.
func (a *AssessmentPostgreSQL) CreateOrGet(ctx context.Context, tx *gorm.DB, assessment *models.CandidateAssessment) (string, bool, error) {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}

	err := a.getDB(tx).WithContext(ctx).Create(assessment).Error
	if err == nil {
		a.cacheManager.InvalidateAssessment(ctx, assessment.ID)
		return assessment.ID, false, nil
	}
	if !isDuplicateKey(err) {
		return "", false, fmt.Errorf("failed to create assessment: %w", err)
	}

	existing, getErr := a.GetBySubmissionKey(ctx, tx, assessment.SubmissionKey)
	if getErr != nil {
		return "", false, fmt.Errorf("failed to load existing assessment: %w", getErr)
	}
	return existing.ID, true, nil
}

// GetByID retrieves an assessment by ID with caching
func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.CandidateAssessment, error) {
	cacheKey := fmt.Sprintf("id:%s", id)
	var assessment models.CandidateAssessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cacheKey, &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.CandidateAssessment
		if err := a.getDB(tx).WithContext(ctx).First(&dbAssessment, "id = ?", id).Error; err != nil {
			return nil, notFound(err)
		}
		return &dbAssessment, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return &assessment, nil
}

func (a *AssessmentPostgreSQL) GetBySubmissionKey(ctx context.Context, tx *gorm.DB, key string) (*models.CandidateAssessment, error) {
	var assessment models.CandidateAssessment
	if err := a.getDB(tx).WithContext(ctx).First(&assessment, "submission_key = ?", key).Error; err != nil {
		return nil, fmt.Errorf("failed to get assessment by submission key: %w", notFound(err))
	}
	return &assessment, nil
}

// List retrieves assessments with filters and the total count
func (a *AssessmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AssessmentFilters) ([]*models.CandidateAssessment, int64, error) {
	filters = normalizeFilters(filters)

	var total int64
	countQuery := applyFilters(a.getDB(tx).WithContext(ctx).Model(&models.CandidateAssessment{}), filters)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count assessments: %w", err)
	}

	var assessments []*models.CandidateAssessment
	query := applyFilters(a.getDB(tx).WithContext(ctx).Model(&models.CandidateAssessment{}), filters).
		Order("created_at " + filters.SortOrder).
		Limit(filters.Limit).
		Offset(filters.Offset)
	if err := query.Find(&assessments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list assessments: %w", err)
	}

	return assessments, total, nil
}
