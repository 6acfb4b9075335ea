// Package bootstrap provides dependency initialization for the slidecast API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/slidecast/slidecast-api/internal/assets"
	"github.com/slidecast/slidecast-api/internal/compositor"
	"github.com/slidecast/slidecast-api/internal/config"
	"github.com/slidecast/slidecast-api/internal/filtergraph"
	"github.com/slidecast/slidecast-api/internal/loudness"
	"github.com/slidecast/slidecast-api/internal/narration"
	"github.com/slidecast/slidecast-api/internal/render"
	"github.com/slidecast/slidecast-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	RenderService *render.Service
	Synthesizer   narration.Synthesizer
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	uploader, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	resolver := assets.NewResolver(uploader, logger)

	backend := render.Backend(cfg.RenderBackend)

	// Only the selected backend is constructed; the orchestrator never
	// touches the other one.
	var composition, filterGraph render.Renderer
	switch backend {
	case render.BackendComposition:
		composition, err = initCompositor(cfg, logger)
	case render.BackendFilterGraph:
		filterGraph, err = initFilterGraph(cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	normalizer := loudness.NewNormalizer(cfg.FFmpegPath, loudness.DefaultOptions())

	svc, err := render.NewService(resolver, composition, filterGraph, normalizer, backend, logger)
	if err != nil {
		return nil, fmt.Errorf("create render service: %w", err)
	}

	deps := &Dependencies{RenderService: svc}

	if cfg.NarrationEnabled() {
		var opts []narration.ClientOption
		if cfg.NarrationAPIKey != "" {
			opts = append(opts, narration.WithAPIKey(cfg.NarrationAPIKey))
		}
		client, err := narration.NewClient(cfg.NarrationURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create narration client: %w", err)
		}
		deps.Synthesizer = client
		logger.Info("narration service configured",
			slog.String("url", cfg.NarrationURL),
		)
	}

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Uploader, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initCompositor creates the declarative composition renderer.
func initCompositor(cfg *config.Config, logger *slog.Logger) (render.Renderer, error) {
	registry := compositor.NewRegistry()
	if cfg.CompositionManifest != "" {
		var err error
		registry, err = compositor.LoadRegistry(cfg.CompositionManifest)
		if err != nil {
			return nil, fmt.Errorf("load composition manifest: %w", err)
		}
	}

	renderer, err := compositor.NewRenderer(
		cfg.EnginePath,
		cfg.EngineEntry,
		registry,
		cfg.CompositionID,
		cfg.OutputDir,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create composition renderer: %w", err)
	}
	return renderer, nil
}

// initFilterGraph creates the embedded filter-graph engine.
func initFilterGraph(cfg *config.Config, logger *slog.Logger) (render.Renderer, error) {
	opts := filtergraph.DefaultOptions()
	if cfg.CanvasWidth > 0 && cfg.CanvasHeight > 0 {
		opts.Width = cfg.CanvasWidth
		opts.Height = cfg.CanvasHeight
	}

	engine, err := filtergraph.NewEngine(
		cfg.FFmpegPath,
		filepath.Join(cfg.TempDir, "render"),
		cfg.OutputDir,
		opts,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create filter graph engine: %w", err)
	}
	return engine, nil
}
