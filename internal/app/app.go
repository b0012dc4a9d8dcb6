// Package app wires configuration into the store, providers and pipeline
// shared by the server and the voice CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/voicepost/internal/config"
	"github.com/alkime/voicepost/internal/generation"
	"github.com/alkime/voicepost/internal/keyring"
	"github.com/alkime/voicepost/internal/pipeline"
	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/transcription"
	"github.com/alkime/voicepost/internal/upload"
)

// App holds the long-lived collaborators built from a Config.
type App struct {
	Store         store.Store
	Pipeline      *pipeline.Orchestrator
	Generator     *generation.Generator
	Transcription transcription.Provider
	Generation    generation.Provider

	closers []func()
}

// Close releases the database pool, if any.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// New builds the store, providers and orchestrator described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	st, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Store = st

	dest, err := upload.NewS3Destination(ctx, upload.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: keyring.Resolve(keyring.AWSSecret, cfg.AWSSecretAccessKey),
		PublicBaseURL:   cfg.S3PublicBaseURL,
		PresignExpiry:   cfg.S3PresignExpiry,
	}, nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("blob storage: %w", err)
	}

	uploader := upload.NewUploader(dest, cfg.MaxUploadBytes, logger)

	a.Transcription = TranscriptionProvider(cfg, logger)
	a.Generation = GenerationProvider(cfg)

	policy := transcription.PollPolicy{
		MaxAttempts: cfg.TranscriptionMaxPolls,
		Interval:    cfg.TranscriptionPollInterval,
	}

	a.Pipeline = pipeline.New(st, uploader,
		func(recs store.Recordings) pipeline.Transcriber {
			return transcription.NewStage(a.Transcription, recs, policy, logger)
		},
		func(recs store.Recordings, posts store.Posts) pipeline.Generator {
			return generation.NewGenerator(a.Generation, recs, posts, logger)
		},
		logger,
	)

	a.Generator = generation.NewGenerator(a.Generation, st, st, logger)

	logger.Info("Pipeline configured",
		"transcription", a.Transcription.Name(),
		"transcription_configured", a.Transcription.Configured(),
		"generation", a.Generation.Name(),
		"generation_configured", a.Generation.Configured(),
	)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	pool, err := store.NewPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, pool.Close)

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return pg, nil
}

// TranscriptionProvider returns the provider named by cfg. Keys missing from
// the environment are looked up in the system keychain.
func TranscriptionProvider(cfg *config.Config, logger *slog.Logger) transcription.Provider {
	client := &http.Client{Timeout: 2 * time.Minute}

	if cfg.TranscriptionProvider == config.ProviderWhisper {
		return transcription.NewWhisper(keyring.Resolve(keyring.OpenAI, cfg.OpenAIAPIKey), client, logger)
	}

	return transcription.NewAssemblyAI(
		keyring.Resolve(keyring.AssemblyAI, cfg.AssemblyAIAPIKey),
		cfg.AssemblyAIBaseURL,
		client,
	)
}

// GenerationProvider returns the chat provider named by cfg.
func GenerationProvider(cfg *config.Config) generation.Provider {
	if cfg.GenerationProvider == config.ProviderAnthropic {
		return generation.NewAnthropic(keyring.Resolve(keyring.Anthropic, cfg.AnthropicAPIKey))
	}

	return generation.NewOpenAI(keyring.Resolve(keyring.OpenAI, cfg.OpenAIAPIKey))
}

// PruneRuns drops finished runs older than retention until ctx is done.
func PruneRuns(ctx context.Context, runs *pipeline.Registry, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(max(retention/4, time.Minute))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := runs.Prune(now.Add(-retention)); n > 0 {
				logger.Debug("Pruned finished runs", "count", n)
			}
		}
	}
}
