package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/services"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/utils"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves the reviewer dashboard.
type AdminHandler struct {
	BaseHandler
	assessmentService services.AssessmentService
	insightService    services.InsightService
	recoveryService   services.RecoveryService
	exportService     services.ExportService
	sessionService    services.SessionService
	usage             *services.UsageTracker
	validator         *validator.Validator
}

func NewAdminHandler(sm services.ServiceManager, validator *validator.Validator, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:       NewBaseHandler(logger),
		assessmentService: sm.Assessment(),
		insightService:    sm.Insight(),
		recoveryService:   sm.Recovery(),
		exportService:     sm.Export(),
		sessionService:    sm.Session(),
		usage:             sm.Usage(),
		validator:         validator,
	}
}

// ListAssessments lists persisted assessments
// @Summary List assessments
// @Tags admin
// @Produce json
// @Param page query int false "Page number (0-based)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param suspicious_only query bool false "Only flagged candidates"
// @Param position query string false "Candidate position"
// @Param q query string false "Search candidate name or position"
// @Param sort_dir query string false "asc or desc (default: desc)"
// @Success 200 {object} models.PaginatedResponse
// @Failure 400 {object} ErrorResponse
// @Router /admin/assessments [get]
func (h *AdminHandler) ListAssessments(c *gin.Context) {
	params := &models.ListAssessmentsParams{
		Page:           parseIntQuery(c, "page", 0),
		Size:           parseIntQuery(c, "size", 20),
		SuspiciousOnly: parseBoolQuery(c, "suspicious_only"),
		Position:       strings.TrimSpace(c.Query("position")),
		Search:         strings.TrimSpace(c.Query("q")),
		SortDir:        strings.ToLower(c.Query("sort_dir")),
	}

	h.LogRequest(c, "Listing assessments",
		"page", params.Page,
		"size", params.Size,
		"suspicious_only", params.SuspiciousOnly)

	page, err := h.assessmentService.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetAssessment returns one assessment with sanitized metrics
// @Summary Get assessment
// @Tags admin
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} models.AssessmentDetail
// @Failure 404 {object} ErrorResponse
// @Router /admin/assessments/{id} [get]
func (h *AdminHandler) GetAssessment(c *gin.Context) {
	detail, err := h.assessmentService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ExportAssessments downloads the integrity report
// @Summary Export integrity report
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param suspicious_only query bool false "Only flagged candidates"
// @Param position query string false "Candidate position"
// @Success 200 {file} file
// @Router /admin/assessments/export [get]
func (h *AdminHandler) ExportAssessments(c *gin.Context) {
	filters := repositories.AssessmentFilters{
		SuspiciousOnly: parseBoolQuery(c, "suspicious_only"),
		Position:       strings.TrimSpace(c.Query("position")),
		Search:         strings.TrimSpace(c.Query("q")),
	}

	h.LogRequest(c, "Exporting integrity report", "suspicious_only", filters.SuspiciousOnly)

	data, err := h.exportService.ExportIntegrityReport(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("integrity-report-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GenerateInsights runs the AI analysis of an assessment
// @Summary Generate insights
// @Tags admin
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} models.AssessmentInsights
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/assessments/{id}/insights [post]
func (h *AdminHandler) GenerateInsights(c *gin.Context) {
	id := c.Param("id")
	h.LogRequest(c, "Generating insights", "assessment_id", id)

	insights, err := h.insightService.Generate(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// GetSessionMetrics returns the live metrics of a running session
// @Summary Live session metrics
// @Tags admin
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.AntiCheatingMetrics
// @Failure 404 {object} ErrorResponse
// @Router /admin/sessions/{id}/metrics [get]
func (h *AdminHandler) GetSessionMetrics(c *gin.Context) {
	metrics, err := h.sessionService.Metrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetStuckAnalyses lists analyses that never cleared their marker
// @Summary List stuck analyses
// @Tags admin
// @Produce json
// @Success 200 {array} models.StuckAnalysis
// @Router /admin/recovery/stuck [get]
func (h *AdminHandler) GetStuckAnalyses(c *gin.Context) {
	stuck, err := h.recoveryService.FindStuck(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stuck": stuck,
		"count": len(stuck),
	})
}

// EmergencyReset deletes every in-progress marker
// @Summary Reset stuck analyses
// @Tags admin
// @Produce json
// @Success 200 {object} models.RecoveryResult
// @Router /admin/recovery/reset [post]
func (h *AdminHandler) EmergencyReset(c *gin.Context) {
	user, _ := GetUserFromContext(c)
	userID := ""
	if user != nil {
		userID = user.ID
	}
	h.LogWarn(c, "Emergency reset requested", "user_id", userID)

	result, err := h.recoveryService.EmergencyReset(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetUsage returns the AI usage counters
// @Summary AI usage
// @Tags admin
// @Produce json
// @Success 200 {object} services.UsageSnapshot
// @Router /admin/usage [get]
func (h *AdminHandler) GetUsage(c *gin.Context) {
	c.JSON(http.StatusOK, h.usage.Snapshot())
}

func (h *AdminHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAssessmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Assessment not found",
		})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, services.ErrAnalysisInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Analysis already in progress for this assessment",
		})
	case errors.Is(err, services.ErrAIUnavailable):
		h.LogWarn(c, "AI insights unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "AI insights are temporarily unavailable",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Details: err.Error(),
		})
	}
}
