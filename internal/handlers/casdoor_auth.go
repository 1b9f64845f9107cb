package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/config"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories/casdoor"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/utils"
)

// tokenParser is the part of the Casdoor client the middleware uses.
type tokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	parser     tokenParser
	userRepo   repositories.UserRepository
	production bool
	logger     utils.Logger
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware.
// Without a Casdoor configuration the admin surface is open outside
// production and unavailable in production.
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, production bool, logger utils.Logger) *CasdoorAuthMiddleware {
	m := &CasdoorAuthMiddleware{
		userRepo:   userRepo,
		production: production,
		logger:     logger,
	}
	if cfg.Enabled() {
		m.parser = casdoorsdk.NewClient(
			cfg.Endpoint,
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Cert,
			cfg.Organization,
			cfg.Application,
		)
	} else {
		logger.Warn("Casdoor not configured, admin authentication disabled", "production", production)
	}
	return m
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if cam.parser == nil {
			if cam.production {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error":   "unavailable",
					"message": "admin authentication is not configured",
				})
				c.Abort()
				return
			}
			setUser(c, &models.User{ID: "local-admin", FullName: "Local Admin", Role: models.RoleAdmin})
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authorization header missing",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>" format
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := cam.parser.ParseJwtToken(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("invalid token: %v", err),
			})
			c.Abort()
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("failed to extract user info: %v", err),
			})
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "user role not found in context",
			})
			c.Abort()
			return
		}

		role, ok := userRole.(models.UserRole)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "invalid user role format",
			})
			c.Abort()
			return
		}

		// admins pass every role check
		hasRequiredRole := false
		for _, requiredRole := range requiredRoles {
			if role == requiredRole || role == models.RoleAdmin {
				hasRequiredRole = true
				break
			}
		}

		if !hasRequiredRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractUserFromClaims prefers the cached Casdoor profile and falls back to
// the token claims.
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	if cam.userRepo != nil {
		user, err := cam.userRepo.GetByID(ctx, userID)
		if err == nil && user != nil {
			return user, nil
		}
		cam.logger.Debug("Falling back to token claims", "user_id", userID, "error", err)
	}

	user := casdoor.ConvertUser(&claims.User)
	user.ID = userID
	return user, nil
}

func setUser(c *gin.Context, user *models.User) {
	c.Set("user_id", user.ID)
	c.Set("user", user)
	c.Set("user_role", user.Role)
	c.Set("user_email", user.Email)
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}
