package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionSubmitted SessionStatus = "submitted"
	SessionEnded     SessionStatus = "ended"
)

// SessionInfo is the public view of a candidate session.
type SessionInfo struct {
	ID                string            `json:"id"`
	CandidateName     string            `json:"candidate_name"`
	CandidatePosition string            `json:"candidate_position"`
	Variant           AssessmentVariant `json:"variant"`
	Status            SessionStatus     `json:"status"`
	StartedAt         time.Time         `json:"started_at"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	CompletedPrompts  int               `json:"completed_prompts"`
	Submission        SubmissionState   `json:"submission"`
}
