package models

import "time"

// ===== CANDIDATE SESSION =====

type StartSessionRequest struct {
	CandidateName     string            `json:"candidate_name" validate:"required,candidate_field"`
	CandidatePosition string            `json:"candidate_position" validate:"required,candidate_field"`
	Variant           AssessmentVariant `json:"variant" validate:"required,assessment_variant"`
	UserAgent         string            `json:"user_agent" validate:"max=512"`
	// VisibilityAPI defaults to true; browsers without the Page Visibility
	// API send false and window tracking falls back to blur/focus.
	VisibilityAPI    *bool `json:"visibility_api"`
	TimeLimitSeconds int   `json:"time_limit_seconds" validate:"min=0,max=14400"`
}

type RecordEventsRequest struct {
	Events []BrowserEvent `json:"events" validate:"required,min=1,max=500,dive"`
}

type EventsResult struct {
	// Prevented[i] tells the UI to call preventDefault() on Events[i].
	Prevented []bool              `json:"prevented"`
	Flags     []SuspicionReason   `json:"flags"`
	Metrics   AntiCheatingMetrics `json:"metrics"`
}

type SubmitRequest struct {
	AptitudeScore int            `json:"aptitude_score" validate:"min=0"`
	AptitudeTotal int            `json:"aptitude_total" validate:"min=0,gtefield=AptitudeScore"`
	WritingScores []WritingScore `json:"writing_scores" validate:"omitempty,dive"`
}

type SubmissionResult struct {
	AssessmentID string          `json:"assessment_id"`
	Existing     bool            `json:"existing"`
	State        SubmissionState `json:"state"`
}

// ===== ADMIN =====

type ListAssessmentsParams struct {
	Page           int    `json:"page" validate:"min=0"`
	Size           int    `json:"size" validate:"min=1,max=100"`
	SuspiciousOnly bool   `json:"suspicious_only"`
	Position       string `json:"position" validate:"max=255"`
	Search         string `json:"search" validate:"max=255"`
	SortDir        string `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

func NewPaginatedResponse(content interface{}, count int, total int64, page, size int) PaginatedResponse {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       pages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             pages == 0 || page >= pages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}

// AssessmentSummary is one row of the admin assessment list.
type AssessmentSummary struct {
	ID                       string    `json:"id"`
	CandidateName            string    `json:"candidate_name"`
	CandidatePosition        string    `json:"candidate_position"`
	AptitudeScore            int       `json:"aptitude_score"`
	AptitudeTotal            int       `json:"aptitude_total"`
	PromptCount              int       `json:"prompt_count"`
	AverageWritingScore      *float64  `json:"average_writing_score"`
	SuspiciousActivity       bool      `json:"suspicious_activity"`
	SuspiciousActivityDetail string    `json:"suspicious_activity_detail,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
}

// AssessmentDetail is a persisted assessment with decoded documents.
type AssessmentDetail struct {
	ID                string              `json:"id"`
	CandidateName     string              `json:"candidate_name"`
	CandidatePosition string              `json:"candidate_position"`
	AptitudeScore     int                 `json:"aptitude_score"`
	AptitudeTotal     int                 `json:"aptitude_total"`
	CompletedPrompts  []CompletedPrompt   `json:"completed_prompts"`
	WritingScores     []WritingScore      `json:"writing_scores"`
	Metrics           AntiCheatingMetrics `json:"metrics"`
	CreatedAt         time.Time           `json:"created_at"`
}

// StuckAnalysis is an in-progress marker older than the stuck threshold.
type StuckAnalysis struct {
	Key       string        `json:"key"`
	StartedAt time.Time     `json:"started_at"`
	Age       time.Duration `json:"age_ns"`
}

type RecoveryResult struct {
	Removed int `json:"removed"`
}
