package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/adapters/cache"
	"github.com/eswasthya/portal/backend/internal/adapters/database"
	"github.com/eswasthya/portal/backend/internal/adapters/events"
	"github.com/eswasthya/portal/backend/internal/adapters/ledger"
	"github.com/eswasthya/portal/backend/internal/adapters/locks"
	"github.com/eswasthya/portal/backend/internal/adapters/storage"
	"github.com/eswasthya/portal/backend/internal/api/handlers"
	"github.com/eswasthya/portal/backend/internal/api/middleware"
	"github.com/eswasthya/portal/backend/internal/api/routes"
	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/openai"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/redis"
	"github.com/eswasthya/portal/backend/internal/infrastructure/notifications"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	"github.com/eswasthya/portal/backend/pkg/config"
	"github.com/eswasthya/portal/backend/pkg/secrets"
)

func main() {
	// Secrets and .env must be in the environment before config.Load reads it
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vaultResult, vaultErr := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment, cfg.LogLevel)

	if vaultErr != nil {
		log.Fatal().Err(vaultErr).Msg("failed to load secrets from vault")
	}
	if vaultResult.Enabled {
		log.Info().Str("path", vaultResult.Path).Int("loaded", vaultResult.Loaded).
			Int("skipped", vaultResult.Skipped).Msg("vault secrets applied")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if cfg.Database.AutoMigrate {
		applied, err := pgClient.Migrate(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Int("applied", applied).Msg("database migrations complete")
	}

	// Redis is optional; without it the portal uses in-process fallbacks
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-process cache, locks and events")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	var locker providers.RecordLocker
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		locker = locks.NewRedisRecordLocker(redisClient, cfg.Ledger.LockTTL)
	} else {
		eventBus = events.NewMemoryEventBus()
		locker = locks.NewLocalRecordLocker()
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}()

	// Report storage
	var reportStorage providers.ReportStorage
	var media http.Handler
	switch cfg.Storage.Provider {
	case config.StorageProviderGCS:
		gcs, err := storage.NewGCSStorage(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSCredentials)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize GCS storage")
		}
		defer gcs.Close()
		reportStorage = gcs
	default:
		local, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.BaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize local storage")
		}
		reportStorage = local
		media = handlers.NewMediaHandler(local)
	}

	// The completion client is optional: without an API key the analyzer
	// stays static and the assistant reports an upstream error.
	var completion providers.TextCompletionProvider
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize OpenAI client")
		}
		completion = client
		log.Info().Str("model", client.Model()).Msg("OpenAI client initialized")
	} else {
		completion = openai.Disabled{}
		log.Warn().Msg("OPENAI_API_KEY not set, assistant endpoints will fail")
	}

	var analyzer providers.ReportAnalyzer = services.StaticAnalyzer{}
	if cfg.Analysis.Mode == config.AnalyzerModeAI {
		if cfg.OpenAI.APIKey == "" {
			log.Fatal().Msg("ANALYZER_MODE=ai requires OPENAI_API_KEY")
		}
		analyzer = services.NewAIAnalyzer(completion, cfg.Analysis.Timeout)
	}

	recordLedger, err := ledger.Open(ctx, &cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Ledger.Backend).Msg("failed to open ledger")
	}
	defer recordLedger.Close()

	var notifier providers.AlertNotifier = notifications.LogNotifier{}
	if cfg.Notifications.WhatsAppEnabled {
		sender, err := notifications.NewWhatsAppCloudSender(&cfg.Notifications)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize WhatsApp sender")
		}
		notifier = sender
	}

	// Repositories
	reportRepo := database.NewReportAdapter(pgClient)
	var analysisRepo repositories.AnalysisRepository = database.NewAnalysisAdapter(pgClient)
	if cacheProvider != nil {
		analysisRepo = database.NewCachedAnalysisAdapter(analysisRepo, cacheProvider)
	}
	contactRepo := database.NewEmergencyContactAdapter(pgClient)
	alertRepo := database.NewEmergencyAlertAdapter(pgClient)

	// Services
	reportService := services.NewReportService(reportRepo, analysisRepo, reportStorage, analyzer, services.ReportServiceConfig{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Thumbnails:     cfg.Storage.ThumbnailsEnabled,
	})
	emergencyService := services.NewEmergencyService(contactRepo, alertRepo, notifier, eventBus, cfg.Emergency.DefaultRegion)
	symptomService := services.NewSymptomService(completion, cfg.OpenAI.Timeout)
	chatService := services.NewChatService(completion, symptomService, cfg.OpenAI.Timeout)
	recordService := services.NewMedicalRecordService(recordLedger, locker, cfg.Ledger.TxTimeout)

	chatLimiter := middleware.NewRateLimiter(cacheProvider, "chat", cfg.RateLimit.ChatRequests, cfg.RateLimit.ChatWindow)
	if err := chatLimiter.TrustProxies(cfg.RateLimit.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("invalid TRUSTED_PROXIES")
	}

	router := routes.NewRouter(
		routes.Handlers{
			Index:         handlers.NewIndexHandler(cfg.OTEL.ServiceVersion, cfg.Storage.MaxUploadBytes),
			Report:        handlers.NewReportHandler(reportService, cfg.Storage.MaxUploadBytes),
			Emergency:     handlers.NewEmergencyHandler(emergencyService),
			Chat:          handlers.NewChatHandler(chatService),
			MedicalRecord: handlers.NewMedicalRecordHandler(recordService),
			SSE:           handlers.NewSSEHandler(eventBus),
			Media:         media,
		},
		chatLimiter,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// Write timeout covers ledger confirmations; the alert stream
		// clears its own deadline.
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("ledger", cfg.Ledger.Backend).
			Str("storage", cfg.Storage.Provider).Str("analyzer", cfg.Analysis.Mode).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}
