// Package submission guarantees at most one successful save of an
// assessment per normalized candidate and position.
package submission

import "strings"

// Key prefixes of the persisted submission record and the session lock.
const (
	SubmittedKeyPrefix = "assessment_submitted_"
	LockKeyPrefix      = "assessment_submission_lock_"
)

// NormalizeCandidate builds the dedup identity of a candidate.
func NormalizeCandidate(name, position string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "_" + strings.ToLower(strings.TrimSpace(position))
}

// SubmissionKey holds the id of a saved assessment. It never expires.
func SubmissionKey(name, position string) string {
	return SubmittedKeyPrefix + NormalizeCandidate(name, position)
}

// LockKey holds the epoch-ms start of an in-flight or completed submission.
func LockKey(name, position string) string {
	return LockKeyPrefix + NormalizeCandidate(name, position)
}
