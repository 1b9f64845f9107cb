package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/events"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/integrity"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/llm"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/submission"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	SessionLockTTL         time.Duration
	AutoSubmitDelay        time.Duration
	StuckAnalysisThreshold time.Duration
	InsightCacheTTL        time.Duration

	// Clock drives the integrity trackers; nil means wall time.
	Clock integrity.Clock
}

// Dependencies are the shared infrastructure handed to the services.
type Dependencies struct {
	Repo      repositories.Repository
	Cache     *cache.CacheManager
	Publisher events.EventPublisher
	Evaluator llm.Evaluator
	Usage     *UsageTracker
	Validator *validator.Validator
	Logger    *slog.Logger
	Registry  prometheus.Registerer
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	config ServiceManagerConfig

	sessionService    SessionService
	assessmentService AssessmentService
	insightService    InsightService
	recoveryService   RecoveryService
	exportService     ExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewMockEventPublisher(deps.Logger)
	}
	if deps.Evaluator == nil {
		deps.Evaluator = llm.Disabled{}
	}
	if deps.Usage == nil {
		deps.Usage = NewUsageTracker(deps.Registry)
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &serviceManager{
		deps:   deps,
		config: config,
	}
}

// DefaultServiceManagerConfig mirrors the configuration defaults
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		SessionLockTTL:         submission.DefaultLockTTL,
		AutoSubmitDelay:        submission.DefaultAutoSubmitDelay,
		StuckAnalysisThreshold: DefaultStuckThreshold,
		InsightCacheTTL:        cache.InsightCacheConfig.TTL,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.deps.Logger.Info("Initializing service manager")

	if sm.deps.Repo == nil {
		return fmt.Errorf("failed to initialize services: repository is required")
	}

	d := sm.deps
	state := cache.NewStore(d.Cache.State)
	if !d.Cache.State.Available() {
		d.Logger.Warn("Redis not configured, submission state is kept in process memory")
	}

	coord := submission.NewCoordinator(state, NewAssessmentSaver(d.Repo), submission.Options{
		LockTTL:  sm.config.SessionLockTTL,
		Metrics:  submission.NewMetrics(d.Registry),
		Notifier: &submittedNotifier{publisher: d.Publisher, logger: d.Logger},
		Logger:   d.Logger,
	})

	sm.sessionService = NewSessionService(coord, d.Publisher, d.Evaluator, d.Usage, d.Validator, d.Logger, SessionServiceConfig{
		AutoSubmitDelay: sm.config.AutoSubmitDelay,
		Clock:           sm.config.Clock,
	})
	d.Logger.Info("Session service initialized")

	sm.assessmentService = NewAssessmentService(d.Repo, d.Logger, d.Validator)
	d.Logger.Info("Assessment service initialized")

	insightCache := cache.NewService(cache.NewStore(d.Cache.Insight), sm.config.InsightCacheTTL, d.Logger)
	sm.insightService = NewInsightService(d.Repo, d.Evaluator, state, insightCache, d.Usage, d.Logger, InsightServiceConfig{
		CacheTTL: sm.config.InsightCacheTTL,
	})
	d.Logger.Info("Insight service initialized")

	sm.recoveryService = NewRecoveryService(state, sm.config.StuckAnalysisThreshold, d.Logger)
	d.Logger.Info("Recovery service initialized")

	sm.exportService = NewExportService(d.Repo, d.Logger)
	d.Logger.Info("Export service initialized")

	sm.initialized = true
	d.Logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Session() SessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.sessionService
}

func (sm *serviceManager) Assessment() AssessmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.assessmentService
}

func (sm *serviceManager) Insight() InsightService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.insightService
}

func (sm *serviceManager) Recovery() RecoveryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.recoveryService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.exportService
}

func (sm *serviceManager) Usage() *UsageTracker {
	return sm.deps.Usage
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if sm.sessionService != nil {
		active := sm.sessionService.ActiveSessions()
		sm.sessionService.Close()
		sm.deps.Logger.Info("Session timers stopped", "sessions", active)
	}

	if err := sm.deps.Publisher.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close event publisher", "error", err)
	}

	sm.deps.Usage.Dispose()

	if err := sm.deps.Repo.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")

	return nil
}
