package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/cache"
	"github.com/cardio-risk-server/internal/domain"
	"github.com/cardio-risk-server/internal/history"
	"github.com/cardio-risk-server/internal/middleware"
	"github.com/cardio-risk-server/internal/service"
	"github.com/cardio-risk-server/pkg/textextract"
)

// ConfigSource supplies the runtime configuration the server needs.
type ConfigSource interface {
	GetConfig() *domain.Config
	GetServerConfig() *domain.ServerConfig
}

// HealthChecker reports the liveness of a backing dependency. The postgres
// deployment passes its connection pool; sqlite deployments pass nil.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	configManager ConfigSource
	analyzer      *service.AnalyzerService
	store         history.Store
	cache         cache.AnalysisCache
	extractor     *textextract.Client
	dbHealth      HealthChecker
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance. The extractor may be nil
// when the text extraction service is disabled, and dbHealth may be nil
// when no external database backs the history store.
func NewServer(
	configManager ConfigSource,
	analyzer *service.AnalyzerService,
	store history.Store,
	analysisCache cache.AnalysisCache,
	extractor *textextract.Client,
	dbHealth HealthChecker,
	logger *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	server := &Server{
		configManager: configManager,
		analyzer:      analyzer,
		store:         store,
		cache:         analysisCache,
		extractor:     extractor,
		dbHealth:      dbHealth,
		logger:        logger,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyze/batch", s.handleAnalyzeBatch)
		v1.POST("/metrics/validate", s.handleValidateMetrics)
		v1.POST("/compare", s.handleCompare)
		v1.GET("/analysis/:id", s.handleGetAnalysis)
		v1.GET("/analysis/:id/summary", s.handleGetAnalysisSummary)
		v1.GET("/analyses", s.handleListAnalyses)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
