package models

import "time"

// SubmissionState mirrors the submit flow of one candidate session.
type SubmissionState struct {
	IsSubmitting        bool       `json:"is_submitting"`
	IsSubmitted         bool       `json:"is_submitted"`
	AssessmentID        string     `json:"assessment_id,omitempty"`
	SubmissionError     string     `json:"submission_error,omitempty"`
	SubmissionLock      bool       `json:"submission_lock"`
	RetryCount          int        `json:"retry_count"`
	SubmissionStartTime *time.Time `json:"submission_start_time,omitempty"`
}
