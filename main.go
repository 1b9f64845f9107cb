package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/config"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/events"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/handlers"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/llm"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories/postgres"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/services"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/utils"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/validator"
	"github.com/SAP-F-2025/hirescribe-integrity/pkg"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hirescribe-integrity",
		Short:         "Assessment integrity metrics and submission service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serve := serveCmd()
	root.AddCommand(serve, resetStuckCmd(), exportCmd())

	// "serve" is the default when no subcommand is given
	root.RunE = serve.RunE

	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func resetStuckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-stuck",
		Short: "List or delete stuck analysis markers",
		RunE:  runResetStuck,
	}
	cmd.Flags().Bool("dry-run", false, "Only list the stuck markers")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the integrity report as XLSX",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "integrity-report.xlsx", "Output file path")
	f.Bool("suspicious-only", false, "Only include flagged candidates")
	f.String("position", "", "Filter by candidate position")
	return cmd
}

// app is the wired dependency graph shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	redis    *redis.Client
	repo     repositories.Repository
	services services.ServiceManager
	registry *prometheus.Registry
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := utils.NewJSONLogger(utils.NewLogWriter(utils.LogFileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}), cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize Redis, continuing without it", "error", err)
			redisClient = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:            db,
		RedisClient:   redisClient,
		CasdoorConfig: cfg.Casdoor,
	})
	if err := repoManager.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	publisher, err := events.NewPublisher(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	usage := services.NewUsageTracker(registry)

	var evaluator llm.Evaluator = llm.Disabled{}
	if cfg.OpenAI.APIKey != "" {
		api := llm.NewReliableClient(llm.NewAPI(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey), cfg.OpenAI.RequestsPerSecond, usage.RecordUpstream)
		evaluator = llm.NewWithCompleter(api, cfg.OpenAI.Model)
	} else {
		logger.Warn("OPENAI_API_KEY not set, AI evaluation disabled")
	}

	sm := services.NewServiceManager(services.Dependencies{
		Repo:      repoManager.GetRepository(),
		Cache:     cache.NewCacheManager(redisClient),
		Publisher: publisher,
		Evaluator: evaluator,
		Usage:     usage,
		Validator: validator.New(),
		Logger:    logger,
		Registry:  registry,
	}, services.ServiceManagerConfig{
		SessionLockTTL:         cfg.SessionLockTTL,
		AutoSubmitDelay:        cfg.AutoSubmitDelay,
		StuckAnalysisThreshold: cfg.StuckAnalysisThreshold,
		InsightCacheTTL:        cfg.InsightCacheTTL,
	})
	if err := sm.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		redis:    redisClient,
		repo:     repoManager.GetRepository(),
		services: sm,
		registry: registry,
	}, nil
}

// close shuts the services down; the repository closes the database.
func (a *app) close(ctx context.Context) {
	if err := a.services.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to shutdown services", "error", err)
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	logger := utils.NewSlogLogger(a.logger)

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)

	auth := handlers.NewCasdoorAuthMiddleware(a.cfg.Casdoor, a.repo.User(), a.cfg.IsProduction(), logger)
	handlers.NewHandlerManager(a.services, validator.New(), logger, auth, a.registry).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", a.cfg.Port, "environment", a.cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		logger.Error("Server failed", "error", serveErr)
	}

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	a.close(ctx)

	logger.Info("Server exited")
	return serveErr
}

func runResetStuck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if a.redis == nil {
		return errors.New("REDIS_URL is not set: analysis markers only live in the server process")
	}

	recovery := a.services.Recovery()
	stuck, err := recovery.FindStuck(ctx)
	if err != nil {
		return err
	}
	for _, s := range stuck {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tstarted=%s\tage=%s\n", s.Key, s.StartedAt.Format(time.RFC3339), s.Age.Round(time.Second))
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d stuck marker(s)\n", len(stuck))
		return nil
	}

	res, err := recovery.EmergencyReset(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d marker(s)\n", res.Removed)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	f := cmd.Flags()
	output, _ := f.GetString("output")
	suspiciousOnly, _ := f.GetBool("suspicious-only")
	position, _ := f.GetString("position")

	data, err := a.services.Export().ExportIntegrityReport(ctx, repositories.AssessmentFilters{
		SuspiciousOnly: suspiciousOnly,
		Position:       position,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
	return nil
}
