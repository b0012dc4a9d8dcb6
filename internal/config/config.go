package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment represents the development environment.
	EnvDevelopment = "development"
)

// Provider names accepted by TRANSCRIPTION_PROVIDER and GENERATION_PROVIDER.
const (
	ProviderAssemblyAI = "assemblyai"
	ProviderWhisper    = "whisper"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Env       string `envconfig:"ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080"`
	StaticDir string `envconfig:"STATIC_DIR" default:"./public"`

	// Security settings
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:"10.0.0.0/8,172.16.0.0/12"`
	HSTSMaxAge     int      `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode        string   `envconfig:"CSP_MODE" default:"relaxed"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Persistence. Empty DatabaseURL selects the in-memory store.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Blob storage
	S3Bucket           string        `envconfig:"S3_BUCKET" default:"recordings"`
	S3Region           string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint         string        `envconfig:"S3_ENDPOINT"`
	S3PublicBaseURL    string        `envconfig:"S3_PUBLIC_BASE_URL"`
	S3PresignExpiry    time.Duration `envconfig:"S3_PRESIGN_EXPIRY" default:"15m"`
	AWSAccessKeyID     string        `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string        `envconfig:"AWS_SECRET_ACCESS_KEY"`
	MaxUploadBytes     int64         `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	// Providers
	TranscriptionProvider     string        `envconfig:"TRANSCRIPTION_PROVIDER" default:"assemblyai"`
	GenerationProvider        string        `envconfig:"GENERATION_PROVIDER" default:"openai"`
	AssemblyAIAPIKey          string        `envconfig:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL         string        `envconfig:"ASSEMBLYAI_BASE_URL" default:"https://api.assemblyai.com"`
	OpenAIAPIKey              string        `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey           string        `envconfig:"ANTHROPIC_API_KEY"`
	TranscriptionPollInterval time.Duration `envconfig:"TRANSCRIPTION_POLL_INTERVAL" default:"10s"`
	TranscriptionMaxPolls     int           `envconfig:"TRANSCRIPTION_MAX_POLLS" default:"60"`

	// Pipeline
	RunEventBuffer int           `envconfig:"RUN_EVENT_BUFFER" default:"16"`
	RunRetention   time.Duration `envconfig:"RUN_RETENTION" default:"1h"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		// Not an error if file doesn't exist (expected in production)
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	return Process()
}

// Process reads configuration from the environment only.
func Process() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects unknown provider names and non-positive limits.
func (c *Config) Validate() error {
	switch c.TranscriptionProvider {
	case ProviderAssemblyAI, ProviderWhisper:
	default:
		return fmt.Errorf("unknown TRANSCRIPTION_PROVIDER %q (want %s or %s)",
			c.TranscriptionProvider, ProviderAssemblyAI, ProviderWhisper)
	}

	switch c.GenerationProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q (want %s or %s)",
			c.GenerationProvider, ProviderOpenAI, ProviderAnthropic)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	if c.TranscriptionMaxPolls <= 0 {
		return fmt.Errorf("TRANSCRIPTION_MAX_POLLS must be positive, got %d", c.TranscriptionMaxPolls)
	}

	if c.RunEventBuffer <= 0 {
		return fmt.Errorf("RUN_EVENT_BUFFER must be positive, got %d", c.RunEventBuffer)
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"TRANSCRIPTION_POLL_INTERVAL", c.TranscriptionPollInterval},
		{"S3_PRESIGN_EXPIRY", c.S3PresignExpiry},
		{"RUN_RETENTION", c.RunRetention},
	}

	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.value)
		}
	}

	return nil
}

// IsProduction reports whether Env is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == "strict" {
		// Production CSP
		return "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self'; " +
			"img-src 'self' data:; " +
			"media-src 'self' blob: https:; " +
			"object-src 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
	}

	// Development/relaxed CSP
	return "default-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; " +
		"media-src 'self' blob: https:"
}
