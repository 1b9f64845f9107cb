package models

import "time"

// WritingEvaluation is the AI score of one writing response.
type WritingEvaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type Insights struct {
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// IntegrityNarrative explains the anti-cheating signals to a reviewer.
type IntegrityNarrative struct {
	RiskLevel string   `json:"risk_level"`
	Summary   string   `json:"summary"`
	Concerns  []string `json:"concerns"`
}

type AssessmentInsights struct {
	AssessmentID string             `json:"assessment_id"`
	Insights     Insights           `json:"insights"`
	Integrity    IntegrityNarrative `json:"integrity"`
	GeneratedAt  time.Time          `json:"generated_at"`
	// Sequential is true when the rate-limit fallback was used.
	Sequential bool `json:"sequential"`
}
