package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// DefaultStuckThreshold is the age after which an in-progress marker is stuck.
const DefaultStuckThreshold = 5 * time.Minute

var stuckPatterns = []string{AnalysisInProgressPrefix + "*", InsightGenerationPrefix + "*"}

type recoveryService struct {
	state     cache.Store
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecoveryService(state cache.Store, threshold time.Duration, logger *slog.Logger) RecoveryService {
	if threshold <= 0 {
		threshold = DefaultStuckThreshold
	}
	return &recoveryService{
		state:     state,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// FindStuck lists markers older than the threshold. A marker whose value is
// not an epoch-ms timestamp cannot be dated and is reported as stuck.
func (s *recoveryService) FindStuck(ctx context.Context) ([]models.StuckAnalysis, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stuck := []models.StuckAnalysis{}
	for _, key := range keys {
		raw, err := s.state.GetString(ctx, key)
		if err != nil {
			continue // expired between scan and read
		}

		entry := models.StuckAnalysis{Key: key}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			entry.StartedAt = time.UnixMilli(ms)
			entry.Age = now.Sub(entry.StartedAt)
			if entry.Age <= s.threshold {
				continue
			}
		}
		stuck = append(stuck, entry)
	}

	sort.Slice(stuck, func(i, j int) bool { return stuck[i].Key < stuck[j].Key })
	return stuck, nil
}

// EmergencyReset deletes every in-progress marker regardless of age.
func (s *recoveryService) EmergencyReset(ctx context.Context) (*models.RecoveryResult, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		if err := s.state.Delete(ctx, keys...); err != nil {
			return nil, fmt.Errorf("failed to delete analysis markers: %w", err)
		}
	}

	s.logger.WarnContext(ctx, "Emergency reset of analysis markers", "removed", len(keys))
	return &models.RecoveryResult{Removed: len(keys)}, nil
}

func (s *recoveryService) keys(ctx context.Context) ([]string, error) {
	var all []string
	for _, pattern := range stuckPatterns {
		keys, err := s.state.ScanKeys(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", pattern, err)
		}
		all = append(all, keys...)
	}
	return all, nil
}
