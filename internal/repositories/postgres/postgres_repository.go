package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/config"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories/casdoor"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	assessment repositories.AssessmentRepository
	user       repositories.UserRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig config.CasdoorConfig
}

// NewPostgreSQLRepository creates a new repository with all sub-repositories
func NewPostgreSQLRepository(cfg RepositoryConfig) repositories.Repository {
	repo := &PostgreSQLRepository{
		db:           cfg.DB,
		redisClient:  cfg.RedisClient,
		cacheManager: cache.NewCacheManager(cfg.RedisClient),
	}

	repo.assessment = NewAssessmentPostgreSQL(cfg.DB, cfg.RedisClient)

	// User repository uses Casdoor
	if cfg.CasdoorConfig.Enabled() {
		repo.user = casdoor.NewUserCasdoor(cfg.CasdoorConfig, cfg.RedisClient)
	}

	return repo
}

func (r *PostgreSQLRepository) Assessment() repositories.AssessmentRepository {
	return r.assessment
}

// User returns the user repository, nil when Casdoor is not configured
func (r *PostgreSQLRepository) User() repositories.UserRepository {
	return r.user
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection. Redis is owned by the caller.
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(cfg RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: cfg,
	}
}

// Initialize verifies the connections and builds the repository
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	rm.repo = NewPostgreSQLRepository(rm.config)

	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
