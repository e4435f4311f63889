package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/api"
	"github.com/cardio-risk-server/internal/cache"
	"github.com/cardio-risk-server/internal/config"
	"github.com/cardio-risk-server/internal/database"
	"github.com/cardio-risk-server/internal/domain"
	"github.com/cardio-risk-server/internal/history"
	"github.com/cardio-risk-server/internal/service"
	"github.com/cardio-risk-server/pkg/textextract"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"history": cfg.History.Backend,
		"cache":   cfg.Cache.Backend,
	}).Info("Starting cardiovascular risk server")

	// Build the history store for the configured backend
	store, dbPool, err := buildHistoryStore(configManager, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize history store: %v", err)
	}
	defer store.Close()
	if dbPool != nil {
		defer dbPool.Close()
	}

	// Build the analysis cache
	analysisCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}
	defer analysisCache.Close()

	// Text extraction is optional
	var extractor *textextract.Client
	if cfg.TextExtract.Enabled {
		extractor = textextract.NewClient(cfg.TextExtract, logger)
		logger.WithField("base_url", cfg.TextExtract.BaseURL).Info("Text extraction enabled")
	}

	analyzer := service.NewAnalyzerService(logger, domain.DefaultRuleConfig(), domain.SystemClock{})

	// Create server
	var dbHealth api.HealthChecker
	if dbPool != nil {
		dbHealth = dbPool
	}
	server := api.NewServer(configManager, analyzer, store, analysisCache, extractor, dbHealth, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

// buildHistoryStore constructs the configured history backend. The postgres
// backend runs pending schema migrations first and returns the pgx pool it
// keeps open for liveness checks.
func buildHistoryStore(configManager *config.Manager, logger *logrus.Logger) (history.Store, *database.DB, error) {
	cfg := configManager.GetConfig()

	switch cfg.History.Backend {
	case "postgres":
		dbCfg := cfg.Database
		if dbCfg.MigrationsPath != "" {
			runner, err := database.NewMigrationRunner(database.BuildURL(dbCfg), dbCfg.MigrationsPath, logger)
			if err != nil {
				return nil, nil, err
			}
			if err := runner.Up(); err != nil {
				runner.Close()
				return nil, nil, err
			}
			runner.Close()
		}
		dbPool, err := database.NewConnection(context.Background(), dbCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := history.NewPostgresStoreFromURL(configManager.GetDatabaseConnectionString())
		if err != nil {
			dbPool.Close()
			return nil, nil, err
		}
		return store, dbPool, nil
	default:
		store, err := history.NewSQLiteStore(cfg.History.SQLitePath)
		return store, nil, err
	}
}

// newLogger configures logrus from the logging section of the config.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		logger.SetOutput(os.Stdout)
	}

	return logger
}
