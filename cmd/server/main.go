package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alkime/voicepost/internal/app"
	"github.com/alkime/voicepost/internal/config"
	"github.com/alkime/voicepost/internal/logger"
	"github.com/alkime/voicepost/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	logger := logger.SetupLogger(cfg)

	// Log startup information
	logger.Info("Starting voicepost server",
		"env", cfg.Env,
		"port", cfg.Port,
		"static_dir", cfg.StaticDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
	defer deps.Close()

	go app.PruneRuns(ctx, deps.Pipeline.Runs(), cfg.RunRetention, logger)

	srv := server.New(cfg, logger, server.Deps{
		Store:     deps.Store,
		Pipeline:  deps.Pipeline,
		Generator: deps.Generator,
	})

	if err := server.Run(ctx, srv); err != nil {
		logger.Error("Server stopped", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
}
