package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slidecast/slidecast-api/internal/timeline"
)

// Backend selects which renderer executes a request.
type Backend string

const (
	// BackendComposition renders through the external declarative
	// composition engine.
	BackendComposition Backend = "composition"
	// BackendFilterGraph renders through the embedded filter-graph engine.
	BackendFilterGraph Backend = "filtergraph"
)

// IsValid returns true if the backend name is recognized.
func (b Backend) IsValid() bool {
	return b == BackendComposition || b == BackendFilterGraph
}

// Service orchestrates a render request: it validates the segment list,
// computes the timeline, resolves assets, invokes the selected backend and
// triggers post-render loudness normalization. It is the only component
// aware of both renderer backends.
type Service struct {
	resolver    Resolver
	composition Renderer
	filterGraph Renderer
	normalizer  Normalizer
	backend     Backend
	logger      *slog.Logger
}

// NewService creates the render orchestrator.
func NewService(resolver Resolver, composition, filterGraph Renderer, normalizer Normalizer, backend Backend, logger *slog.Logger) (*Service, error) {
	if !backend.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:    resolver,
		composition: composition,
		filterGraph: filterGraph,
		normalizer:  normalizer,
		backend:     backend,
		logger:      logger,
	}, nil
}

// Render drives one request end to end and returns the artifact path.
//
// Cancellation of ctx on the composition path is not a failure: the error is
// logged informationally and returned unwrapped so the transport layer can
// tell it apart from a render failure. Normalization failures are swallowed;
// the un-normalized artifact is still delivered.
func (s *Service) Render(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	if len(req.Segments) == 0 {
		return "", ErrNoSegments
	}

	tl, err := timeline.Compute(req.Segments)
	if err != nil {
		return "", err
	}

	s.logger.Info("render started",
		slog.String("backend", string(s.backend)),
		slog.Int("segments", len(req.Segments)),
		slog.Int("total_frames", tl.TotalFrames),
		slog.Bool("music", req.Music != nil),
	)

	resolved, err := s.resolveRequest(ctx, req)
	if err != nil {
		return "", err
	}

	renderer := s.filterGraph
	if s.backend == BackendComposition {
		renderer = s.composition
	}

	artifact, err := renderer.Render(ctx, resolved, tl, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("render cancelled by caller",
				slog.String("backend", string(s.backend)),
			)
			return "", err
		}
		return "", fmt.Errorf("render: %w", err)
	}

	if !req.DisableNormalization {
		if err := s.normalizer.Normalize(ctx, artifact); err != nil {
			// Best effort: the un-normalized file is still delivered.
			s.logger.Warn("loudness normalization failed",
				slog.String("artifact", artifact),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("render finished",
		slog.String("artifact", artifact),
		slog.Int("total_frames", tl.TotalFrames),
	)

	return artifact, nil
}

// Timeline computes the frame layout for a segment list without rendering.
// Duration previews go through the same math as both backends.
func (s *Service) Timeline(segments []timeline.Segment) (timeline.Timeline, error) {
	if len(segments) == 0 {
		return timeline.Timeline{}, ErrNoSegments
	}
	return timeline.Compute(segments)
}

// resolveRequest publishes every ephemeral reference in the request.
// Renderers never receive ephemeral handles; this is their precondition.
func (s *Service) resolveRequest(ctx context.Context, req Request) (Request, error) {
	resolved := req

	segments, err := s.resolver.ResolveSegments(ctx, req.Segments)
	if err != nil {
		return Request{}, err
	}
	resolved.Segments = segments

	if req.Music != nil {
		ref, err := s.resolver.ResolveMusicRef(ctx, req.Music.Ref)
		if err != nil {
			return Request{}, err
		}
		music := *req.Music
		music.Ref = ref
		resolved.Music = &music
	}

	return resolved, nil
}
