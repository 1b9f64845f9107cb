package casdoor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/config"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

const (
	userCachePrefix = "hirescribe:user:"
	userCacheTTL    = 15 * time.Minute
)

// userSource is the part of the Casdoor client the repository needs.
type userSource interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

type UserCasdoor struct {
	client userSource
	cache  *cache.CacheHelper
}

func NewUserCasdoor(cfg config.CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return newUserCasdoor(client, cache.NewCacheHelper(redisClient, userCachePrefix))
}

func newUserCasdoor(client userSource, helper *cache.CacheHelper) *UserCasdoor {
	return &UserCasdoor{client: client, cache: helper}
}

// GetByID retrieves a user by ID
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	cacheKey := fmt.Sprintf("id:%s", id)

	var cached models.User
	if err := u.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "User cache read failed", "error", err, "user_id", id)
	}

	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if casdoorUser == nil {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}

	user := ConvertUser(casdoorUser)
	u.cache.Set(ctx, cacheKey, user, userCacheTTL)

	return user, nil
}

// ConvertUser maps a Casdoor user to the dashboard user model.
func ConvertUser(casdoorUser *casdoorsdk.User) *models.User {
	avatar := casdoorUser.Avatar
	return &models.User{
		ID:        casdoorUser.Id,
		FullName:  casdoorUser.DisplayName,
		Email:     casdoorUser.Email,
		Role:      userRole(casdoorUser),
		AvatarURL: &avatar,
	}
}

func userRole(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleAdmin
	}

	role := MapRole(casdoorUser.Type)
	for _, r := range casdoorUser.Roles {
		switch MapRole(r.Name) {
		case models.RoleAdmin:
			return models.RoleAdmin
		case models.RoleReviewer:
			role = models.RoleReviewer
		}
	}
	return role
}

// MapRole maps a Casdoor role or user type name to an internal role.
func MapRole(name string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "reviewer", "recruiter", "interviewer", "hiring-manager":
		return models.RoleReviewer
	default:
		return models.RoleCandidate
	}
}
