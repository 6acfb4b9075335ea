// Package render defines the render request shape shared by both renderer
// backends and the orchestrating service that drives a request from
// validation through asset resolution, rendering and loudness normalization.
package render

import (
	"context"
	"errors"

	"github.com/slidecast/slidecast-api/internal/timeline"
)

// Static errors for render requests.
var (
	// ErrNoSegments is returned when a request carries an empty segment list.
	ErrNoSegments = errors.New("render: request has no segments")
	// ErrUnknownBackend is returned when the configured backend name is not recognized.
	ErrUnknownBackend = errors.New("render: unknown backend")
)

// MusicTrack is an optional background music bed. The track loops for as
// long as the narration-driven timeline runs and never extends it.
type MusicTrack struct {
	// Ref is a durable reference to the music audio.
	Ref string
	// Volume is the linear gain applied to the looped track.
	Volume float64
}

// Request is a fully-specified render job: an ordered timeline plus audio
// mixing parameters. Both backends accept the same shape.
type Request struct {
	// Segments is the ordered slide list. Output order always matches.
	Segments []timeline.Segment
	// Music is the optional background track.
	Music *MusicTrack
	// TTSVolume is the linear gain applied to the narration stream.
	TTSVolume float64
	// DisableNormalization skips post-render loudness normalization.
	DisableNormalization bool
}

// ProgressFunc receives render progress as 0-100 percent values.
type ProgressFunc func(percent int)

// Renderer produces one muxed video file from a resolved request and its
// computed timeline, returning the artifact path.
type Renderer interface {
	Render(ctx context.Context, req Request, tl timeline.Timeline, progress ProgressFunc) (artifactPath string, err error)
}

// Normalizer rewrites a media file in place to a target loudness.
type Normalizer interface {
	Normalize(ctx context.Context, path string) error
}

// Resolver produces an equivalent request in which every media reference is
// durable and fetchable by a renderer.
type Resolver interface {
	ResolveSegments(ctx context.Context, segments []timeline.Segment) ([]timeline.Segment, error)
	ResolveMusicRef(ctx context.Context, ref string) (string, error)
}
