// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrUnknownBackend is returned when RENDER_BACKEND names an unsupported backend.
	ErrUnknownBackend = errors.New("config: RENDER_BACKEND must be \"composition\" or \"filtergraph\"")
	// ErrEnginePathRequired is returned when the composition backend is selected without ENGINE_PATH.
	ErrEnginePathRequired = errors.New("config: ENGINE_PATH is required for the composition backend")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Workspace settings
	TempDir   string `env:"TEMP_DIR, default=/tmp/slidecast" json:"temp_dir"`
	OutputDir string `env:"OUTPUT_DIR, default=/tmp/slidecast/out" json:"output_dir"`

	// Render settings
	RenderBackend string `env:"RENDER_BACKEND, default=filtergraph" json:"render_backend"` // "composition" or "filtergraph"
	CanvasWidth   int    `env:"CANVAS_WIDTH, default=1920" json:"canvas_width"`
	CanvasHeight  int    `env:"CANVAS_HEIGHT, default=1080" json:"canvas_height"`

	// Composition engine settings
	EnginePath          string `env:"ENGINE_PATH" json:"engine_path,omitempty"`
	EngineEntry         string `env:"ENGINE_ENTRY, default=src/index.ts" json:"engine_entry,omitempty"`
	CompositionManifest string `env:"COMPOSITION_MANIFEST" json:"composition_manifest,omitempty"`
	CompositionID       string `env:"COMPOSITION_ID" json:"composition_id,omitempty"`

	// Filter graph settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Narration service settings
	NarrationURL    string `env:"NARRATION_URL" json:"narration_url,omitempty"`
	NarrationAPIKey string `env:"NARRATION_API_KEY" json:"-"` // Masked in JSON

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// NarrationEnabled returns true if a narration service is configured.
func (c *Config) NarrationEnabled() bool {
	return c.NarrationURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.RenderBackend {
	case "composition":
		if c.EnginePath == "" {
			return ErrEnginePathRequired
		}
	case "filtergraph":
	default:
		return ErrUnknownBackend
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, RenderBackend: %s, TempDir: %s, OutputDir: %s, Canvas: %dx%d, EnginePath: %s, FFmpegPath: %s, NarrationURL: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.RenderBackend,
		c.TempDir,
		c.OutputDir,
		c.CanvasWidth,
		c.CanvasHeight,
		c.EnginePath,
		c.FFmpegPath,
		c.NarrationURL,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
