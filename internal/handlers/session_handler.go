package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/integrity"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/services"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/submission"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/utils"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

// SessionHandler serves the candidate assessment UI.
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *validator.Validator
}

func NewSessionHandler(sessionService services.SessionService, validator *validator.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// StartSession mounts the trackers of a new candidate session
// @Summary Start session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body models.StartSessionRequest true "Candidate and variant"
// @Success 201 {object} models.SessionInfo
// @Failure 400 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	h.LogRequest(c, "Starting session", "variant", req.Variant)

	info, err := h.sessionService.StartSession(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// GetSession returns the public view of a session
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionInfo
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	info, err := h.sessionService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// RecordEvents feeds a batch of browser events to the trackers
// @Summary Record browser events
// @Description Prevented[i] tells the UI to call preventDefault() on events[i]
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param events body models.RecordEventsRequest true "Events"
// @Success 200 {object} models.EventsResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/events [post]
func (h *SessionHandler) RecordEvents(c *gin.Context) {
	var req models.RecordEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	result, err := h.sessionService.RecordEvents(c.Request.Context(), c.Param("id"), req.Events)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CompletePrompt stores an answered prompt
// @Summary Complete prompt
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param prompt body models.CompletedPrompt true "Answered prompt"
// @Success 201 {object} models.SessionInfo
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/prompts [post]
func (h *SessionHandler) CompletePrompt(c *gin.Context) {
	var prompt models.CompletedPrompt
	if err := c.ShouldBindJSON(&prompt); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	info, err := h.sessionService.CompletePrompt(c.Request.Context(), c.Param("id"), &prompt)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// StartPrompt resets the time-spent baseline
// @Summary Start prompt
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/prompts/start [post]
func (h *SessionHandler) StartPrompt(c *gin.Context) {
	if err := h.sessionService.StartPrompt(c.Request.Context(), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EvaluatePrompt scores one answered prompt with the AI evaluator
// @Summary Evaluate prompt
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param prompt_id path string true "Prompt ID"
// @Success 200 {object} models.WritingEvaluation
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/{id}/prompts/{prompt_id}/evaluate [post]
func (h *SessionHandler) EvaluatePrompt(c *gin.Context) {
	promptID := c.Param("prompt_id")
	h.LogRequest(c, "Evaluating prompt", "session_id", c.Param("id"), "prompt_id", promptID)

	eval, err := h.sessionService.EvaluatePrompt(c.Request.Context(), c.Param("id"), promptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

// GetMetrics returns the live anti-cheating metrics
// @Summary Get session metrics
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.AntiCheatingMetrics
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/metrics [get]
func (h *SessionHandler) GetMetrics(c *gin.Context) {
	metrics, err := h.sessionService.Metrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// ResetMetrics zeroes the counters of an aptitude session
// @Summary Reset session metrics
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.AntiCheatingMetrics
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/reset [post]
func (h *SessionHandler) ResetMetrics(c *gin.Context) {
	metrics, err := h.sessionService.ResetMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// Submit saves the assessment at most once per candidate
// @Summary Submit assessment
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param submit body models.SubmitRequest false "Scores"
// @Success 200 {object} models.SubmissionResult
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	req, ok := h.bindSubmit(c)
	if !ok {
		return
	}
	if req == nil {
		req = &models.SubmitRequest{}
	}

	h.LogRequest(c, "Submitting assessment", "session_id", c.Param("id"))

	result, err := h.sessionService.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Finish arms the results-page auto-submit
// @Summary Finish assessment
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param submit body models.SubmitRequest false "Scores"
// @Success 202 {object} models.SessionInfo
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/finish [post]
func (h *SessionHandler) Finish(c *gin.Context) {
	req, ok := h.bindSubmit(c)
	if !ok {
		return
	}

	info, err := h.sessionService.Finish(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, info)
}

// GetSubmission returns the submission state
// @Summary Get submission state
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SubmissionState
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/submission [get]
func (h *SessionHandler) GetSubmission(c *gin.Context) {
	state, err := h.sessionService.SubmissionState(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ClearSubmissionError dismisses the last submit error
// @Summary Clear submission error
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SubmissionState
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/submission/error [delete]
func (h *SessionHandler) ClearSubmissionError(c *gin.Context) {
	state, err := h.sessionService.ClearSubmissionError(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// EndSession unmounts the trackers
// @Summary End session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) EndSession(c *gin.Context) {
	if err := h.sessionService.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindSubmit binds an optional submit body. A nil request means no body.
func (h *SessionHandler) bindSubmit(c *gin.Context) (*models.SubmitRequest, bool) {
	if c.Request.ContentLength == 0 {
		return nil, true
	}
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return nil, false
	}
	return &req, true
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var submitErr *submission.Error
	if errors.As(err, &submitErr) {
		status := http.StatusServiceUnavailable
		switch submitErr.Kind {
		case submission.KindMissingCandidateInfo, submission.KindNoCompletedPrompts:
			status = http.StatusUnprocessableEntity
		}
		if status >= http.StatusInternalServerError {
			h.LogError(c, err, "Submission failed", "kind", submitErr.Kind)
		}
		c.JSON(status, ErrorResponse{
			Message: submitErr.Message,
			Details: map[string]interface{}{"kind": submitErr.Kind},
		})
		return
	}

	switch {
	case errors.Is(err, submission.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission already in progress",
		})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, services.ErrPromptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Prompt not found",
		})
	case errors.Is(err, services.ErrSessionEnded):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Session has ended",
		})
	case errors.Is(err, services.ErrResetNotSupported):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Metrics reset is only available for aptitude sessions",
		})
	case errors.Is(err, integrity.ErrUnknownVariant):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unknown assessment variant",
		})
	case errors.Is(err, services.ErrAIUnavailable):
		h.LogWarn(c, "AI evaluation unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Writing evaluation is temporarily unavailable",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Details: err.Error(),
		})
	}
}
