package submission

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindMissingCandidateInfo ErrorKind = "missing_candidate_info"
	KindNoCompletedPrompts   ErrorKind = "no_completed_prompts"
	KindIndexRequired        ErrorKind = "index_required"
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindRemoteFailure        ErrorKind = "remote_failure"
)

// ErrDuplicateSubmission is returned when another attempt for the same
// candidate holds the lock and has not produced an id yet.
var ErrDuplicateSubmission = errors.New("submission already in progress")

var userMessages = map[ErrorKind]string{
	KindMissingCandidateInfo: "Missing candidate information. Please restart the assessment.",
	KindNoCompletedPrompts:   "No completed prompts found. Please complete at least one prompt.",
	KindIndexRequired:        "Database index required. Please contact the administrator.",
	KindPermissionDenied:     "Permission denied. Please check your access rights.",
	KindRemoteFailure:        "Failed to save assessment. Please try again.",
}

// UserMessage returns the candidate-facing text of an error kind.
func UserMessage(kind ErrorKind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[KindRemoteFailure]
}

// Error is a failed submission attempt. Message is safe to show the candidate.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: UserMessage(kind), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("submission %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a save failure to a kind by its message.
func classify(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "index"):
		return newError(KindIndexRequired, err)
	case strings.Contains(msg, "permission"):
		return newError(KindPermissionDenied, err)
	default:
		return newError(KindRemoteFailure, err)
	}
}
