package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/voicepost/internal/config"
	"github.com/alkime/voicepost/internal/pipeline"
	"github.com/alkime/voicepost/internal/store"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Store     store.Store
	Pipeline  *pipeline.Orchestrator
	Generator pipeline.Generator
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	deps   Deps
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// Configure proxy trust for production (Fly.io)
	if cfg.IsProduction() {
		router.TrustedPlatform = gin.PlatformFlyIO
		logger.Debug("Configured trusted platform", "platform", "fly.io")
	}

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("Ignoring invalid trusted proxies", "proxies", cfg.TrustedProxies, "error", err)
	}

	server := &Server{
		config: cfg,
		logger: logger,
		router: router,
		deps:   deps,
	}

	// Setup middleware and routes
	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, s *Server) error {
	httpServer := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)

	go func() {
		s.logger.Info("Server listening", "port", s.config.Port)
		errC <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Static assets win over API routes only when a file exists at the path.
	s.router.Use(static.Serve("/", static.LocalFile(s.config.StaticDir, false)))

	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1", requireOwner())
	{
		api.POST("/recordings", s.handleCreateRecording)
		api.GET("/recordings/:id", s.handleGetRecording)
		api.GET("/recordings/:id/posts", s.handleListPosts)
		api.POST("/recordings/:id/posts", s.handleGeneratePost)

		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.DELETE("/runs/:id", s.handleCancelRun)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "voicepost",
	})
}
