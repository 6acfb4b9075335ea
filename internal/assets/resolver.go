// Package assets turns ephemeral media handles into durable references.
// Renderers only ever see resolved segments; they never re-validate this.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slidecast/slidecast-api/internal/storage"
	"github.com/slidecast/slidecast-api/internal/timeline"
)

// Static errors for asset resolution.
var (
	// ErrMalformedDataURI is returned when an ephemeral handle cannot be parsed.
	ErrMalformedDataURI = errors.New("assets: malformed data URI")
	// ErrUnsupportedMediaType is returned for a data URI with an unknown media type.
	ErrUnsupportedMediaType = errors.New("assets: unsupported media type")
)

// extByMediaType maps data URI media types to file extensions.
var extByMediaType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"audio/wav":  ".wav",
	"audio/wave": ".wav",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// Resolver publishes ephemeral in-process media handles through an uploader
// so that every reference a renderer consumes is durable and fetchable.
type Resolver struct {
	uploader storage.Uploader
	logger   *slog.Logger
}

// NewResolver creates a Resolver backed by the given uploader.
func NewResolver(uploader storage.Uploader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{uploader: uploader, logger: logger}
}

// IsEphemeral reports whether ref is an in-process handle that must be
// published before a renderer may consume it.
func IsEphemeral(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// ResolveSegments returns an equivalent segment list in which every media
// reference is durable. Assets are processed strictly one at a time: uploads
// of large media are deliberately not parallelized so that concurrent
// connections and buffered payload memory stay bounded. The first failure
// aborts the whole resolution, identifying the segment and field.
func (r *Resolver) ResolveSegments(ctx context.Context, segments []timeline.Segment) ([]timeline.Segment, error) {
	resolved := make([]timeline.Segment, len(segments))
	copy(resolved, segments)

	for i := range resolved {
		if IsEphemeral(resolved[i].VisualRef) {
			url, err := r.resolve(ctx, resolved[i].VisualRef, fmt.Sprintf("seg_%03d_visual", i))
			if err != nil {
				return nil, fmt.Errorf("resolve segment %d visual: %w", i, err)
			}
			resolved[i].VisualRef = url
		}

		if IsEphemeral(resolved[i].NarrationRef) {
			url, err := r.resolve(ctx, resolved[i].NarrationRef, fmt.Sprintf("seg_%03d_narration", i))
			if err != nil {
				return nil, fmt.Errorf("resolve segment %d narration: %w", i, err)
			}
			resolved[i].NarrationRef = url
		}
	}

	return resolved, nil
}

// ResolveMusicRef publishes an ephemeral music reference. Durable references
// pass through unchanged.
func (r *Resolver) ResolveMusicRef(ctx context.Context, ref string) (string, error) {
	if !IsEphemeral(ref) {
		return ref, nil
	}
	url, err := r.resolve(ctx, ref, "music")
	if err != nil {
		return "", fmt.Errorf("resolve music: %w", err)
	}
	return url, nil
}

// resolve decodes a data URI and uploads its payload under keyBase plus the
// extension implied by the declared media type.
func (r *Resolver) resolve(ctx context.Context, ref, keyBase string) (string, error) {
	mediaType, payload, err := parseDataURI(ref)
	if err != nil {
		return "", err
	}

	ext, ok := extByMediaType[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}

	key := keyBase + ext
	url, err := r.uploader.Upload(ctx, key, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	r.logger.Debug("asset resolved",
		slog.String("key", key),
		slog.String("media_type", mediaType),
		slog.Int("bytes", len(payload)),
	)

	return url, nil
}

// parseDataURI splits a base64 data URI into its media type and payload.
func parseDataURI(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, ErrMalformedDataURI
	}

	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformedDataURI
	}

	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformedDataURI)
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedDataURI, err)
	}

	return mediaType, payload, nil
}
