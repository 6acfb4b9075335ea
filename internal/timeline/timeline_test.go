package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sec(v float64) *float64 { return &v }

func TestSegmentEffectiveSec(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		want float64
	}{
		{
			name: "default segment holds five seconds",
			seg:  Segment{},
			want: 5.0,
		},
		{
			name: "narration duration plus post delay",
			seg:  Segment{NarrationSec: sec(3.2), PostDelaySec: sec(0.5)},
			want: 3.7,
		},
		{
			name: "narration duration without post delay",
			seg:  Segment{NarrationSec: sec(2.0)},
			want: 2.0,
		},
		{
			name: "unmeasured narration falls back to default hold",
			seg:  Segment{PostDelaySec: sec(1.5)},
			want: 6.5,
		},
		{
			name: "narration disabled uses post delay alone",
			seg:  Segment{NarrationDisabled: true, NarrationSec: sec(9.0), PostDelaySec: sec(2.0)},
			want: 2.0,
		},
		{
			name: "narration disabled without post delay uses default hold",
			seg:  Segment{NarrationDisabled: true, NarrationSec: sec(9.0)},
			want: 5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.seg.EffectiveSec(), 1e-9)
		})
	}
}

func TestSegmentFrames(t *testing.T) {
	t.Run("rounds per segment", func(t *testing.T) {
		seg := Segment{NarrationSec: sec(3.2), PostDelaySec: sec(0.5)}
		assert.Equal(t, 111, seg.Frames()) // round(3.7 * 30)
	})

	t.Run("narration disabled with explicit delay", func(t *testing.T) {
		seg := Segment{NarrationDisabled: true, PostDelaySec: sec(2.0)}
		assert.Equal(t, 60, seg.Frames())
	})

	t.Run("narration disabled with unset delay", func(t *testing.T) {
		seg := Segment{NarrationDisabled: true}
		assert.Equal(t, 150, seg.Frames())
	})

	t.Run("never collapses to zero frames", func(t *testing.T) {
		seg := Segment{NarrationDisabled: true, PostDelaySec: sec(0.001)}
		assert.Equal(t, 1, seg.Frames())

		zero := Segment{NarrationDisabled: true, PostDelaySec: sec(0)}
		assert.Equal(t, 1, zero.Frames())
	})

	t.Run("matches rounded product for ordinary durations", func(t *testing.T) {
		for _, d := range []float64{0.1, 0.5, 1.0, 2.75, 3.333, 10.0} {
			seg := Segment{NarrationSec: sec(d), PostDelaySec: sec(0)}
			got := seg.Frames()
			assert.GreaterOrEqual(t, got, 1)
			assert.InDelta(t, d*FPS, float64(got), 0.5)
		}
	})
}

func TestCompute(t *testing.T) {
	t.Run("three default segments total 450 frames", func(t *testing.T) {
		tl, err := Compute([]Segment{{}, {}, {}})
		require.NoError(t, err)
		assert.Equal(t, []int{150, 150, 150}, tl.Frames)
		assert.Equal(t, 450, tl.TotalFrames)
		assert.InDelta(t, 15.0, tl.TotalSec(), 1e-9)
	})

	t.Run("preserves segment order", func(t *testing.T) {
		tl, err := Compute([]Segment{
			{NarrationSec: sec(1.0)},
			{NarrationSec: sec(2.0)},
			{NarrationSec: sec(3.0)},
		})
		require.NoError(t, err)
		assert.Equal(t, []int{30, 60, 90}, tl.Frames)
		assert.Equal(t, 180, tl.TotalFrames)
	})

	t.Run("start offsets follow cumulative frames", func(t *testing.T) {
		tl, err := Compute([]Segment{
			{NarrationSec: sec(1.5)},
			{NarrationSec: sec(2.5)},
			{},
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, tl.StartSec(0), 1e-9)
		assert.InDelta(t, 1.5, tl.StartSec(1), 1e-9)
		assert.InDelta(t, 4.0, tl.StartSec(2), 1e-9)
	})

	t.Run("empty list is rejected", func(t *testing.T) {
		_, err := Compute(nil)
		require.ErrorIs(t, err, ErrNoSegments)
	})
}

func TestSegmentMusicMuted(t *testing.T) {
	assert.False(t, Segment{MediaType: MediaImage}.MusicMuted())
	assert.True(t, Segment{MusicDisabled: true}.MusicMuted())
	assert.True(t, Segment{MediaType: MediaVideo, VideoMusicPaused: true}.MusicMuted())
	assert.False(t, Segment{MediaType: MediaImage, VideoMusicPaused: true}.MusicMuted())
}
