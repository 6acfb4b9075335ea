// Package timeline provides the pure duration and frame math for slide
// segments. Both renderer backends consume this package exclusively; frame
// counts are never re-derived elsewhere.
package timeline

import (
	"errors"
	"math"
)

// FPS is the fixed output frame rate.
const FPS = 30

// DefaultHoldSec is the fallback hold duration when a segment has no
// measured narration duration.
const DefaultHoldSec = 5.0

// ErrNoSegments is returned when a timeline is computed over an empty list.
var ErrNoSegments = errors.New("timeline: no segments")

// MediaType identifies the kind of visual a segment carries.
type MediaType string

const (
	// MediaImage is a still image held for the segment duration.
	MediaImage MediaType = "image"
	// MediaVideo is a raw video clip.
	MediaVideo MediaType = "video"
)

// Transition is the visual transition into a segment. Transitions never
// affect segment duration.
type Transition string

const (
	TransitionFade  Transition = "fade"
	TransitionSlide Transition = "slide"
	TransitionZoom  Transition = "zoom"
	TransitionNone  Transition = "none"
)

// Segment is one slide's worth of timeline content.
type Segment struct {
	// VisualRef is a reference to the slide's image or video. Empty means
	// the segment renders as a solid color.
	VisualRef string
	// MediaType says whether VisualRef is a still image or a video clip.
	MediaType MediaType
	// NarrationRef is a reference to the narration audio, if any.
	NarrationRef string
	// NarrationSec is the measured narration duration in seconds.
	// Nil when narration has not been generated or measured.
	NarrationSec *float64
	// PostDelaySec is an additional trailing hold. Nil means unset, which
	// is distinct from an explicit zero.
	PostDelaySec *float64
	// Transition is the visual transition into this segment.
	Transition Transition
	// NarrationDisabled drops the narration track for this segment and
	// switches the duration rule to the post-delay hold.
	NarrationDisabled bool
	// MusicDisabled mutes the background music bed during this segment.
	MusicDisabled bool
	// VideoMusicPaused mutes the music bed while a video segment plays.
	VideoMusicPaused bool
}

// HasNarration reports whether the segment contributes a narration clip.
func (s Segment) HasNarration() bool {
	return !s.NarrationDisabled && s.NarrationRef != ""
}

// MusicMuted reports whether the music bed is silenced over this segment.
func (s Segment) MusicMuted() bool {
	return s.MusicDisabled || (s.MediaType == MediaVideo && s.VideoMusicPaused)
}

// EffectiveSec returns the seconds this segment occupies in the final video.
//
// With narration enabled the segment lasts the measured narration duration
// (default hold when unmeasured) plus any post delay. With narration
// disabled the post delay alone governs, falling back to the default hold
// when unset.
func (s Segment) EffectiveSec() float64 {
	if s.NarrationDisabled {
		if s.PostDelaySec != nil {
			return *s.PostDelaySec
		}
		return DefaultHoldSec
	}

	d := DefaultHoldSec
	if s.NarrationSec != nil {
		d = *s.NarrationSec
	}
	if s.PostDelaySec != nil {
		d += *s.PostDelaySec
	}
	return d
}

// Frames returns the frame count for this segment: round(effective * FPS)
// with a floor of one frame. A zero-frame segment would break stream
// concatenation downstream.
func (s Segment) Frames() int {
	f := int(math.Round(s.EffectiveSec() * FPS))
	if f < 1 {
		return 1
	}
	return f
}

// Timeline is the computed frame layout for an ordered segment list.
type Timeline struct {
	// Frames holds the per-segment frame counts, in segment order.
	Frames []int
	// TotalFrames is the sum of the per-segment counts. Rounding happens
	// per segment, never once over the aggregate seconds.
	TotalFrames int
}

// TotalSec returns the total duration in seconds at the fixed frame rate.
func (t Timeline) TotalSec() float64 {
	return float64(t.TotalFrames) / FPS
}

// SegmentSec returns the exact seconds segment i occupies, derived from its
// frame count so that graph trim durations and the timeline agree.
func (t Timeline) SegmentSec(i int) float64 {
	return float64(t.Frames[i]) / FPS
}

// StartSec returns the start offset in seconds of segment i.
func (t Timeline) StartSec(i int) float64 {
	total := 0
	for _, f := range t.Frames[:i] {
		total += f
	}
	return float64(total) / FPS
}

// Compute builds the Timeline for an ordered segment list.
// It is pure and deterministic; segment order is preserved.
func Compute(segments []Segment) (Timeline, error) {
	if len(segments) == 0 {
		return Timeline{}, ErrNoSegments
	}

	t := Timeline{Frames: make([]int, len(segments))}
	for i, s := range segments {
		t.Frames[i] = s.Frames()
		t.TotalFrames += t.Frames[i]
	}
	return t, nil
}
