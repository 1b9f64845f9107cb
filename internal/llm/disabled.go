package llm

import (
	"context"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// Disabled is used when no API key is configured. Every call fails with
// ErrNotConfigured.
type Disabled struct{}

func (Disabled) EvaluateWriting(context.Context, string, string) (*models.WritingEvaluation, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GenerateInsights(context.Context, InsightRequest) (*models.Insights, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GenerateIntegrityNarrative(context.Context, InsightRequest) (*models.IntegrityNarrative, error) {
	return nil, ErrNotConfigured
}
