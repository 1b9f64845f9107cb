package models

import (
	"time"

	"gorm.io/datatypes"
)

// CompletedPrompt is one answered writing prompt.
type CompletedPrompt struct {
	PromptID  string   `json:"prompt_id" validate:"required,max=100"`
	Prompt    string   `json:"prompt" validate:"required,max=5000"`
	Response  string   `json:"response" validate:"max=50000"`
	WordCount int      `json:"word_count" validate:"min=0"`
	Score     *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=5"`
	Feedback  string   `json:"feedback,omitempty"`
}

type WritingScore struct {
	PromptID string  `json:"prompt_id"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// CandidateAssessment is the persisted result of one candidate session.
// SubmissionKey is unique, so a second save for the same normalized
// candidate+position can never create another row.
type CandidateAssessment struct {
	ID                string `json:"id" gorm:"primaryKey;size:36"`
	SubmissionKey     string `json:"submission_key" gorm:"uniqueIndex;not null;size:600"`
	CandidateName     string `json:"candidate_name" gorm:"not null;size:255;index"`
	CandidatePosition string `json:"candidate_position" gorm:"not null;size:255;index"`

	AptitudeScore int `json:"aptitude_score"`
	AptitudeTotal int `json:"aptitude_total"`

	CompletedPrompts datatypes.JSON `json:"completed_prompts" gorm:"type:jsonb"`
	WritingScores    datatypes.JSON `json:"writing_scores" gorm:"type:jsonb"`
	Metrics          datatypes.JSON `json:"metrics" gorm:"type:jsonb"`

	SuspiciousActivity bool `json:"suspicious_activity" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CandidateAssessment) TableName() string {
	return "candidate_assessments"
}

// TotalWordCount sums the word counts of the answered prompts.
func TotalWordCount(prompts []CompletedPrompt) int {
	total := 0
	for _, p := range prompts {
		if p.WordCount > 0 {
			total += p.WordCount
		}
	}
	return total
}
