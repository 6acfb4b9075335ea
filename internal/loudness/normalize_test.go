package loudness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMeasureOutput = `[Parsed_loudnorm_0 @ 0x5591]
{
	"input_i" : "-23.61",
	"input_tp" : "-6.53",
	"input_lra" : "7.10",
	"input_thresh" : "-33.83",
	"output_i" : "-14.02",
	"output_tp" : "-1.50",
	"output_lra" : "6.90",
	"output_thresh" : "-24.26",
	"normalization_type" : "dynamic",
	"target_offset" : "0.02"
}
`

func TestParseStats(t *testing.T) {
	t.Run("extracts the trailing json block", func(t *testing.T) {
		noise := "frame= 120 fps=0.0 q=-0.0 size=N/A\n" + sampleMeasureOutput
		stats, err := parseStats(noise)
		require.NoError(t, err)

		assert.Equal(t, "-23.61", stats.InputI)
		assert.Equal(t, "-6.53", stats.InputTP)
		assert.Equal(t, "7.10", stats.InputLRA)
		assert.Equal(t, "-33.83", stats.InputThresh)
		assert.Equal(t, "0.02", stats.TargetOffset)
	})

	t.Run("no stats block", func(t *testing.T) {
		_, err := parseStats("frame= 120 fps=0.0\nvideo:0kB audio:812kB")
		assert.ErrorIs(t, err, ErrNoStats)
	})

	t.Run("json without loudnorm fields", func(t *testing.T) {
		_, err := parseStats(`{"unrelated": "true"}`)
		assert.ErrorIs(t, err, ErrNoStats)
	})
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, -14.0, opts.TargetLoudness)
	assert.Equal(t, -1.5, opts.TruePeak)
	assert.Equal(t, 11.0, opts.LoudnessRange)
}

func TestNewNormalizerDefaults(t *testing.T) {
	n := NewNormalizer("", Options{})
	assert.Equal(t, "ffmpeg", n.ffmpegPath)
	assert.Equal(t, DefaultOptions(), n.opts)
}
