package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

var (
	ErrNoChoices     = errors.New("LLM returned no choices")
	ErrNotConfigured = errors.New("AI client is not configured")
)

// Completer is the part of the OpenAI client the evaluator needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Evaluator is the set of remote AI calls used by the services.
type Evaluator interface {
	EvaluateWriting(ctx context.Context, prompt, response string) (*models.WritingEvaluation, error)
	GenerateInsights(ctx context.Context, req InsightRequest) (*models.Insights, error)
	GenerateIntegrityNarrative(ctx context.Context, req InsightRequest) (*models.IntegrityNarrative, error)
}

// InsightRequest carries one persisted assessment to the model.
type InsightRequest struct {
	CandidateName     string
	CandidatePosition string
	AptitudeScore     int
	AptitudeTotal     int
	Prompts           []models.CompletedPrompt
	Metrics           models.AntiCheatingMetrics
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   Completer
	model string
}

// New creates a client for an OpenAI-compatible endpoint.
func New(baseURL, apiKey, modelName string) *Client {
	return NewWithCompleter(NewAPI(baseURL, apiKey), modelName)
}

// NewAPI returns the raw API client, for wrapping in a ReliableClient.
func NewAPI(baseURL, apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

func NewWithCompleter(api Completer, modelName string) *Client {
	return &Client{api: api, model: modelName}
}

// EvaluateWriting scores one writing response on a 0-5 scale.
func (c *Client) EvaluateWriting(ctx context.Context, prompt, response string) (*models.WritingEvaluation, error) {
	var result models.WritingEvaluation
	if err := c.complete(ctx, buildWritingSystemPrompt(), buildWritingUserPrompt(prompt, response), 0.2, &result); err != nil {
		return nil, fmt.Errorf("evaluate writing: %w", err)
	}
	result.Score = clampScore(result.Score)
	return &result, nil
}

// GenerateInsights summarizes strengths and weaknesses of a candidate.
func (c *Client) GenerateInsights(ctx context.Context, req InsightRequest) (*models.Insights, error) {
	var result models.Insights
	if err := c.complete(ctx, buildInsightSystemPrompt(), buildAssessmentPrompt(req), 0.3, &result); err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.Weaknesses == nil {
		result.Weaknesses = []string{}
	}
	return &result, nil
}

// GenerateIntegrityNarrative explains the anti-cheating signals of a candidate.
func (c *Client) GenerateIntegrityNarrative(ctx context.Context, req InsightRequest) (*models.IntegrityNarrative, error) {
	var result models.IntegrityNarrative
	if err := c.complete(ctx, buildIntegritySystemPrompt(), buildIntegrityPrompt(req.Metrics), 0.1, &result); err != nil {
		return nil, fmt.Errorf("generate integrity narrative: %w", err)
	}
	result.RiskLevel = normalizeRiskLevel(result.RiskLevel)
	if result.Concerns == nil {
		result.Concerns = []string{}
	}
	return &result, nil
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float32, dest any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrNoChoices
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	if err := json.Unmarshal([]byte(extractJSON(raw)), dest); err != nil {
		return fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return nil
}

// extractJSON strips markdown fences some models add despite the JSON mode.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 5:
		return 5
	}
	return s
}

func normalizeRiskLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return "low"
	case "medium", "moderate":
		return "medium"
	case "high":
		return "high"
	}
	return "unknown"
}
