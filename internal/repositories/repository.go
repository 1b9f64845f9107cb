package repositories

import "context"

// Repository groups the repository interfaces
type Repository interface {
	Assessment() AssessmentRepository
	User() UserRepository

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager manages the repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
