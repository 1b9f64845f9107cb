package services

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionEnded       = errors.New("session has ended")
	ErrResetNotSupported  = errors.New("metrics reset is only available for aptitude sessions")
	ErrPromptNotFound     = errors.New("prompt not completed in this session")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrAIUnavailable      = errors.New("AI evaluation unavailable")
)
