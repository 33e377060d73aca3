package setup

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"github.com/robalyx/chatguard/internal/database"
	"github.com/robalyx/chatguard/internal/database/models"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/detector"
	"github.com/robalyx/chatguard/internal/moderation"
	"github.com/robalyx/chatguard/internal/moderation/check"
	"github.com/robalyx/chatguard/internal/moderation/decision"
	"github.com/robalyx/chatguard/internal/moderation/dedup"
	"github.com/robalyx/chatguard/internal/moderation/detection"
	"github.com/robalyx/chatguard/internal/moderation/handlers"
	"github.com/robalyx/chatguard/internal/moderation/pipeline"
	"github.com/robalyx/chatguard/internal/moderation/policy"
	"github.com/robalyx/chatguard/internal/platform/discord"
	"github.com/robalyx/chatguard/internal/redis"
	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/robalyx/chatguard/internal/setup/telemetry"
	"github.com/robalyx/chatguard/internal/warning"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Version is reported to the tracing backend.
const Version = "0.3.0"

// ErrPlatformNotConfigured is returned by operations that need the chat platform
// when no Discord token is configured.
var ErrPlatformNotConfigured = errors.New("discord token not configured")

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config      // Application configuration
	Logger       *zap.Logger         // Main application logger
	DBLogger     *zap.Logger         // Database-specific logger
	DB           database.Client     // Database connection pool
	RedisManager *redis.Manager      // Redis connection manager
	LogManager   *telemetry.Manager  // Log management system
	Policies     *policy.Resolver    // Per-chat moderation policies
	Coordinator  *check.Coordinator  // Detector fan-out
	Warnings     *warning.Store      // Persistent warning counters
	Platform     *discord.Client     // Chat platform, nil without a token
	Decision     *decision.Service   // Platform action execution, nil without a platform
	Service      *moderation.Service // Moderation entry points, nil without a platform

	gemini          *genai.Client
	workers         *pool.Pool
	shutdownTracing func(context.Context)
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, componentName, logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(componentName, logDir, &cfg.Common.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	shutdownTracing := telemetry.ConfigureTracing(&cfg.Common.Telemetry, Version, logger)

	policies, err := policy.NewResolver(&cfg.Moderation)
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	warningClient, err := redisManager.GetClient(redis.WarningsDBIndex)
	if err != nil {
		return nil, err
	}

	progressClient, err := redisManager.GetClient(redis.TrustProgressDBIndex)
	if err != nil {
		return nil, err
	}

	// Initialize database with migration check
	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:          cfg,
		Logger:          logger,
		DBLogger:        dbLogger.Named("database"),
		DB:              db,
		RedisManager:    redisManager,
		LogManager:      logManager,
		Policies:        policies,
		Warnings:        warning.NewStore(warningClient, logger),
		workers:         pool.New().WithMaxGoroutines(max(cfg.Common.Discord.MaxConcurrentMessages, 1)),
		shutdownTracing: shutdownTracing,
	}

	// Detectors are registered once; policies decide which of them run per chat
	detectors, err := app.buildDetectors(ctx, configDir)
	if err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	app.Coordinator = check.NewCoordinator(detectors, logger)

	if cfg.Common.Discord.Token == "" {
		logger.Warn("Discord token not configured, moderation actions are unavailable")
		return app, nil
	}

	platformClient, err := discord.New(cfg.Common.Discord.Token, db.Model().Message(), app.handleMessage, logger)
	if err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	app.Platform = platformClient
	app.buildModeration(warning.NewCounter(progressClient, "clean_messages"))

	return app, nil
}

// buildDetectors creates every detector with its configuration.
// The LLM detector is only registered when an API key is configured.
func (a *App) buildDetectors(ctx context.Context, configDir string) ([]check.Detector, error) {
	wordlist, err := config.LoadWordlist(configDir)
	if err != nil {
		return nil, err
	}

	detectors := []check.Detector{
		detector.NewWordlistDetector(wordlist, a.Logger),
		detector.NewLinkDetector(&a.Config.Moderation.Links),
		detector.NewAttachmentDetector(),
	}

	gemini := &a.Config.Common.Gemini
	if gemini.APIKey == "" {
		a.Logger.Info("Gemini API key not configured, LLM detector disabled")
		return detectors, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(gemini.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	a.gemini = client

	return append(detectors, detector.NewGeminiDetector(client, gemini, a.Logger)), nil
}

// buildModeration wires the decision service, the handler pipeline and the
// moderation service on top of the platform and storage.
func (a *App) buildModeration(progress *warning.Counter) {
	repo := a.DB.Model()
	dedupChecker := dedup.NewChecker(repo.Detection(), a.Logger)

	a.Decision = decision.NewService(a.Platform, repo.ChatBan(), repo.Report(), a.Logger)

	eventPipeline := pipeline.New(a.Logger,
		handlers.NewTrustRevocationHandler(repo.Trust(), progress, a.Logger),
		handlers.NewWarningEscalationHandler(a.Warnings, a.Policies, a.Logger),
		handlers.NewTrainingCurationHandler(
			repo.Message(),
			trainingStore{repo.Detection(), repo.Training()},
			dedupChecker,
			a.Policies,
			a.Logger,
		),
		handlers.NewAuditHandler(repo.Audit(), a.Warnings, a.Logger),
		handlers.NewNotificationHandler(a.Platform, a.Warnings, a.Policies, a.Logger),
	)

	a.Service = moderation.NewService(moderation.Dependencies{
		Detection: detection.Dependencies{
			Messages:   repo.Message(),
			Detections: repo.Detection(),
			Trust:      repo.Trust(),
			Checker:    a.Coordinator,
			Dedup:      dedupChecker,
			Progress:   progress,
		},
		Executor: a.Decision,
		Pipeline: eventPipeline,
		Warnings: a.Warnings,
		Policies: a.Policies,
	}, a.Logger)
}

// handleMessage runs detection for an inbound message on the worker pool.
// It blocks while the pool is full, which slows down gateway consumption.
func (a *App) handleMessage(ctx context.Context, msg *types.Message, editVersion int) {
	a.workers.Go(func() {
		a.Service.RunDetection(ctx, msg, editVersion)
	})
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (a *App) Cleanup(ctx context.Context) {
	// Stop receiving messages before draining in-flight detections
	if a.Platform != nil {
		a.Platform.Close()
	}

	a.workers.Wait()

	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.Logger.Error("Failed to close gemini client", zap.Error(err))
		}
	}

	// Close database connections
	if err := a.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	a.RedisManager.Close()

	a.shutdownTracing(ctx)

	// Sync buffered logs before shutdown
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := a.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}

// trainingStore combines the detection and training image models.
type trainingStore struct {
	*models.DetectionModel
	*models.TrainingModel
}

// checkAndRunMigrations runs database migrations if needed.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	pending, err := database.PendingMigrations(ctx, tempDB.DB())
	if err != nil {
		tempDB.Close()
		return nil, err
	}

	if pending == 0 {
		return tempDB, nil
	}

	log.Printf("%d database migrations are pending. Would you like to run them now? (y/N)", pending)

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		tempDB.Close()
		log.Fatalf("Closing program due to incomplete migrations")
	}

	if _, err := database.RunMigrations(ctx, tempDB.DB(), dbLogger); err != nil {
		tempDB.Close()
		return nil, err
	}

	return tempDB, nil
}
