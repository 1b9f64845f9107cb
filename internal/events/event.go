package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "hirescribe-integrity"
	EventVersion = "1.0"
)

type EventType string

const (
	EventSuspiciousActivity  EventType = "integrity.suspicious_activity"
	EventAssessmentSubmitted EventType = "assessment.submitted"
)

// Event is the envelope of every published domain event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SuspiciousActivityEvent is raised for every new suspicion reason.
type SuspiciousActivityEvent struct {
	SessionID         string    `json:"session_id"`
	CandidateName     string    `json:"candidate_name"`
	CandidatePosition string    `json:"candidate_position"`
	Variant           string    `json:"variant"`
	Kind              string    `json:"kind"`
	Detail            string    `json:"detail"`
	At                time.Time `json:"at"`
}

// AssessmentSubmittedEvent is raised once per successful save.
type AssessmentSubmittedEvent struct {
	AssessmentID             string `json:"assessment_id"`
	CandidateName            string `json:"candidate_name"`
	CandidatePosition        string `json:"candidate_position"`
	AptitudeScore            int    `json:"aptitude_score"`
	AptitudeTotal            int    `json:"aptitude_total"`
	SuspiciousActivity       bool   `json:"suspicious_activity"`
	SuspiciousActivityDetail string `json:"suspicious_activity_detail,omitempty"`
}
