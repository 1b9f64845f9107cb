package repositories

import (
	"context"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// UserRepository resolves admin dashboard users. This service does not own
// user data.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
