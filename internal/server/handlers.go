package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/slidecast/slidecast-api/internal/assets"
	"github.com/slidecast/slidecast-api/internal/compositor"
	"github.com/slidecast/slidecast-api/internal/filtergraph"
	"github.com/slidecast/slidecast-api/internal/narration"
	"github.com/slidecast/slidecast-api/internal/render"
	"github.com/slidecast/slidecast-api/internal/timeline"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service     *render.Service
	synthesizer narration.Synthesizer
	validator   *validator.Validate
	logger      *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithSynthesizer enables the narration endpoint. Without it the endpoint
// answers 503.
func WithSynthesizer(s narration.Synthesizer) HandlerOption {
	return func(h *Handlers) {
		h.synthesizer = s
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *render.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Render handles POST /render requests. The finished video is streamed back
// as the response body; the caller holds the connection for the duration of
// the render, and closing it cancels the composition backend cooperatively.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	progress := func(percent int) {
		h.logger.Debug("render progress", slog.Int("percent", percent))
	}

	artifact, err := h.service.Render(r.Context(), toRenderRequest(req), progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The caller went away; there is nobody left to answer.
			h.logger.Info("render abandoned by caller")
			return
		}
		h.renderError(w, err)
		return
	}

	h.streamArtifact(w, artifact)
}

// Timeline handles POST /timeline requests: the deck's timing without a render.
func (h *Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	var req TimelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	segments := toSegments(req.Slides)
	tl, err := h.service.Timeline(segments)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "TIMELINE_FAILED")
		return
	}

	resp := TimelineResponse{
		FPS:              timeline.FPS,
		TotalFrames:      tl.TotalFrames,
		TotalDurationSec: tl.TotalSec(),
		Segments:         make([]TimelineSegment, len(segments)),
	}
	for i := range segments {
		resp.Segments[i] = TimelineSegment{
			Index:       i,
			Frames:      tl.Frames[i],
			StartSec:    tl.StartSec(i),
			DurationSec: tl.SegmentSec(i),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Narration handles POST /narration requests.
func (h *Handlers) Narration(w http.ResponseWriter, r *http.Request) {
	if h.synthesizer == nil {
		writeError(w, http.StatusServiceUnavailable, "narration service is not configured", "NARRATION_UNAVAILABLE")
		return
	}

	var req NarrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	res, err := h.synthesizer.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		h.logger.Error("narration synthesis failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "narration synthesis failed", "NARRATION_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, NarrationResponse{
		AudioRef:    res.AudioRef,
		DurationSec: res.DurationSec,
	})
}

// renderError maps a render failure to a status and code. Failure detail is
// part of the contract: engine stderr and the segment-naming resolution
// messages go back to the caller verbatim.
func (h *Handlers) renderError(w http.ResponseWriter, err error) {
	var graphErr *filtergraph.GraphError
	var engineErr *compositor.EngineError

	switch {
	case errors.Is(err, render.ErrNoSegments):
		writeError(w, http.StatusBadRequest, err.Error(), "NO_SEGMENTS")
	case errors.Is(err, assets.ErrMalformedDataURI),
		errors.Is(err, assets.ErrUnsupportedMediaType):
		writeError(w, http.StatusBadRequest, err.Error(), "ASSET_RESOLUTION_FAILED")
	case errors.Is(err, filtergraph.ErrFetchFailed):
		writeError(w, http.StatusBadGateway, err.Error(), "ASSET_FETCH_FAILED")
	case errors.As(err, &graphErr), errors.As(err, &engineErr):
		h.logger.Error("render failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error(), "ENGINE_FAILED")
	default:
		h.logger.Error("render failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error(), "RENDER_FAILED")
	}
}

// streamArtifact sends the finished file as the response body and removes it
// afterwards.
func (h *Handlers) streamArtifact(w http.ResponseWriter, artifact string) {
	f, err := os.Open(artifact) // #nosec G304 - artifact path comes from the render service
	if err != nil {
		h.logger.Error("failed to open artifact",
			slog.String("artifact", artifact),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read artifact", "ARTIFACT_READ_FAILED")
		return
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(artifact)
	}()

	w.Header().Set("Content-Type", "video/mp4")
	if _, err := io.Copy(w, f); err != nil {
		// Mid-stream failures cannot be reported; the status is already out.
		h.logger.Warn("artifact streaming interrupted",
			slog.String("artifact", artifact),
			slog.String("error", err.Error()),
		)
	}
}

// toRenderRequest maps the wire request to the domain request, applying wire
// defaults (unset narration gain means unity).
func toRenderRequest(req RenderRequest) render.Request {
	out := render.Request{
		Segments:             toSegments(req.Slides),
		TTSVolume:            1.0,
		DisableNormalization: req.DisableAudioNormalization,
	}
	if req.TTSVolume != nil {
		out.TTSVolume = *req.TTSVolume
	}
	if req.Music != nil {
		out.Music = &render.MusicTrack{
			Ref:    req.Music.Ref,
			Volume: req.Music.Volume,
		}
	}
	return out
}

// toSegments maps wire slides to timeline segments.
func toSegments(slides []SlideRequest) []timeline.Segment {
	segments := make([]timeline.Segment, len(slides))
	for i, s := range slides {
		mediaType := timeline.MediaType(s.MediaType)
		if mediaType == "" {
			mediaType = timeline.MediaImage
		}
		segments[i] = timeline.Segment{
			VisualRef:         s.VisualRef,
			MediaType:         mediaType,
			NarrationRef:      s.NarrationRef,
			NarrationSec:      s.NarrationDurationSec,
			PostDelaySec:      s.PostDelaySec,
			Transition:        timeline.Transition(s.Transition),
			NarrationDisabled: s.NarrationDisabled,
			MusicDisabled:     s.MusicDisabled,
			VideoMusicPaused:  s.VideoMusicPaused,
		}
	}
	return segments
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
