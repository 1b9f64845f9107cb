package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/services"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/utils"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	adminHandler   *AdminHandler
	authMiddleware *CasdoorAuthMiddleware
	serviceManager services.ServiceManager
	gatherer       prometheus.Gatherer
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	gatherer prometheus.Gatherer,
) *HandlerManager {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Session(), validator, logger),
		adminHandler:   NewAdminHandler(serviceManager, validator, logger),
		authMiddleware: authMiddleware,
		serviceManager: serviceManager,
		gatherer:       gatherer,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		// Candidate routes are anonymous; the session id is the capability
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.EndSession)

			sessions.POST("/:id/events", hm.sessionHandler.RecordEvents)
			sessions.GET("/:id/metrics", hm.sessionHandler.GetMetrics)
			sessions.POST("/:id/reset", hm.sessionHandler.ResetMetrics)

			sessions.POST("/:id/prompts", hm.sessionHandler.CompletePrompt)
			sessions.POST("/:id/prompts/start", hm.sessionHandler.StartPrompt)
			sessions.POST("/:id/prompts/:prompt_id/evaluate", hm.sessionHandler.EvaluatePrompt)

			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.POST("/:id/finish", hm.sessionHandler.Finish)
			sessions.GET("/:id/submission", hm.sessionHandler.GetSubmission)
			sessions.DELETE("/:id/submission/error", hm.sessionHandler.ClearSubmissionError)
		}

		// Admin routes - Reviewers and Admins only
		admin := v1.Group("/admin")
		admin.Use(hm.authMiddleware.AuthMiddleware())
		admin.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleReviewer, models.RoleAdmin))
		{
			admin.GET("/assessments", hm.adminHandler.ListAssessments)
			admin.GET("/assessments/export", hm.adminHandler.ExportAssessments)
			admin.GET("/assessments/:id", hm.adminHandler.GetAssessment)
			admin.POST("/assessments/:id/insights", hm.adminHandler.GenerateInsights)

			admin.GET("/sessions/:id/metrics", hm.adminHandler.GetSessionMetrics)
			admin.GET("/usage", hm.adminHandler.GetUsage)

			// Recovery - Admins only
			recovery := admin.Group("/recovery")
			recovery.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
			{
				recovery.GET("/stuck", hm.adminHandler.GetStuckAnalyses)
				recovery.POST("/reset", hm.adminHandler.EmergencyReset)
			}
		}
	}

	router.GET("/health", hm.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})))
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "hirescribe-integrity",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "hirescribe-integrity",
		"active_sessions": hm.serviceManager.Session().ActiveSessions(),
	})
}
