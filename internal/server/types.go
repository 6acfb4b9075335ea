// Package server provides the HTTP server for the slidecast API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SlideRequest describes one slide of the deck in wire form.
type SlideRequest struct {
	// VisualRef is a reference to the slide visual: an HTTP(S) URL, a local
	// path, or an ephemeral data URI that gets published before rendering.
	VisualRef string `json:"visualRef"`
	// MediaType is "image" or "video". Empty means image.
	MediaType string `json:"mediaType,omitempty" validate:"omitempty,oneof=image video"`
	// NarrationRef is an optional reference to the narration audio.
	NarrationRef string `json:"narrationRef,omitempty"`
	// NarrationDurationSec is the narration length in seconds. Null means
	// unknown; zero is a real zero-length narration.
	NarrationDurationSec *float64 `json:"narrationDurationSec,omitempty" validate:"omitempty,min=0"`
	// PostDelaySec is the hold after narration ends. Null means the default.
	PostDelaySec *float64 `json:"postDelaySec,omitempty" validate:"omitempty,min=0,max=60"`
	// Transition into the next slide.
	Transition string `json:"transition,omitempty" validate:"omitempty,oneof=fade slide zoom none"`
	// NarrationDisabled silences this slide's narration.
	NarrationDisabled bool `json:"narrationDisabled"`
	// MusicDisabled silences the music bed over this slide.
	MusicDisabled bool `json:"musicDisabled"`
	// VideoMusicPaused silences the music bed while a video slide plays.
	VideoMusicPaused bool `json:"videoMusicPaused"`
}

// MusicRequest is the optional background music track.
type MusicRequest struct {
	// Ref is a reference to the music audio.
	Ref string `json:"ref" validate:"required"`
	// Volume is the linear gain applied to the looped track.
	Volume float64 `json:"volume" validate:"min=0,max=2"`
}

// RenderRequest is the HTTP request body for rendering a deck to video.
type RenderRequest struct {
	// Slides is the ordered deck. Output order always matches.
	Slides []SlideRequest `json:"slides" validate:"required,min=1,dive"`
	// Music is the optional background track.
	Music *MusicRequest `json:"music,omitempty"`
	// TTSVolume is the linear narration gain. Null means 1.0; zero mutes.
	TTSVolume *float64 `json:"ttsVolume,omitempty" validate:"omitempty,min=0,max=2"`
	// DisableAudioNormalization skips post-render loudness normalization.
	DisableAudioNormalization bool `json:"disableAudioNormalization"`
}

// TimelineRequest is the HTTP request body for previewing a deck's timing.
type TimelineRequest struct {
	// Slides is the ordered deck to lay out.
	Slides []SlideRequest `json:"slides" validate:"required,min=1,dive"`
}

// TimelineSegment is one slide's computed placement.
type TimelineSegment struct {
	// Index is the slide's position in the request.
	Index int `json:"index"`
	// Frames is the slide's frame count.
	Frames int `json:"frames"`
	// StartSec is the slide's start offset in seconds.
	StartSec float64 `json:"startSec"`
	// DurationSec is the slide's duration in seconds.
	DurationSec float64 `json:"durationSec"`
}

// TimelineResponse is the HTTP response for a timing preview.
type TimelineResponse struct {
	// FPS is the fixed frame rate of the output.
	FPS int `json:"fps"`
	// TotalFrames is the whole deck's frame count.
	TotalFrames int `json:"totalFrames"`
	// TotalDurationSec is the whole deck's duration in seconds.
	TotalDurationSec float64 `json:"totalDurationSec"`
	// Segments lists each slide's placement in request order.
	Segments []TimelineSegment `json:"segments"`
}

// NarrationRequest is the HTTP request body for synthesizing narration audio.
type NarrationRequest struct {
	// Text is the narration script.
	Text string `json:"text" validate:"required"`
	// Voice selects the synthesis voice. Empty means the service default.
	Voice string `json:"voice,omitempty"`
}

// NarrationResponse is the HTTP response for a finished synthesis.
type NarrationResponse struct {
	// AudioRef is where the produced audio lives.
	AudioRef string `json:"audioRef"`
	// DurationSec is the audio length in seconds.
	DurationSec float64 `json:"durationSec"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
