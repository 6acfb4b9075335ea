package filtergraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slidecast/slidecast-api/internal/render"
	"github.com/slidecast/slidecast-api/internal/timeline"
)

// Options pins the output canvas and audio format for the filter graph.
type Options struct {
	// Width and Height are the target canvas dimensions.
	Width  int
	Height int
	// SampleRate is the fixed audio sample rate for every audio branch.
	SampleRate int
}

// DefaultOptions returns the standard 1080p canvas at 44.1 kHz stereo.
func DefaultOptions() Options {
	return Options{Width: 1920, Height: 1080, SampleRate: 44100}
}

// stagedAssets holds the per-segment input files already written into the
// engine workspace, indexed by segment. Empty entries mean synthesized
// inputs (solid color for visuals, silence for audio).
type stagedAssets struct {
	visuals    []string
	narrations []string
	music      string
}

// buildArgs constructs the complete ffmpeg invocation for one render: one
// input per visual and audio branch, a filter_complex wiring every branch
// through scale/pad/rate/trim into ordered concats, the optional looped
// music mix, and a single encode pass to outPath.
func buildArgs(req render.Request, tl timeline.Timeline, st stagedAssets, opts Options, outPath string) []string {
	n := len(req.Segments)
	args := []string{"-y"}
	filters := make([]string, 0, 2*n+4)
	videoLabels := make([]string, 0, n)
	audioLabels := make([]string, 0, n)

	inputIdx := 0
	for i, seg := range req.Segments {
		d := formatSec(tl.SegmentSec(i))

		// Visual branch: still image held for the segment duration, raw
		// clip, or synthetic solid color. Always normalized through
		// scale -> pad -> fps -> format -> trim -> timestamp reset.
		switch {
		case st.visuals[i] == "":
			args = append(args, "-f", "lavfi", "-t", d,
				"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d", opts.Width, opts.Height, timeline.FPS))
		case seg.MediaType == timeline.MediaImage:
			args = append(args, "-loop", "1", "-t", d, "-i", st.visuals[i])
		default:
			args = append(args, "-i", st.visuals[i])
		}
		filters = append(filters, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,fps=%d,format=yuv420p,trim=duration=%s,setpts=PTS-STARTPTS[v%d]",
			inputIdx, opts.Width, opts.Height, opts.Width, opts.Height, timeline.FPS, d, i))
		videoLabels = append(videoLabels, fmt.Sprintf("[v%d]", i))
		inputIdx++

		// Audio branch: narration forced to the fixed format and padded or
		// trimmed to exactly the segment duration, or synthesized silence.
		if st.narrations[i] != "" {
			args = append(args, "-i", st.narrations[i])
			filters = append(filters, fmt.Sprintf(
				"[%d:a]aresample=%d,aformat=sample_fmts=fltp:channel_layouts=stereo,apad,atrim=duration=%s,asetpts=PTS-STARTPTS[a%d]",
				inputIdx, opts.SampleRate, d, i))
		} else {
			args = append(args, "-f", "lavfi", "-t", d,
				"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", opts.SampleRate))
			filters = append(filters, fmt.Sprintf(
				"[%d:a]atrim=duration=%s,asetpts=PTS-STARTPTS[a%d]", inputIdx, d, i))
		}
		audioLabels = append(audioLabels, fmt.Sprintf("[a%d]", i))
		inputIdx++
	}

	// Ordered concat of both stream families. Segment order in the output
	// always matches the request; audio/video sync depends on it.
	filters = append(filters,
		strings.Join(videoLabels, "")+fmt.Sprintf("concat=n=%d:v=1:a=0[vout]", n),
		strings.Join(audioLabels, "")+fmt.Sprintf("concat=n=%d:v=0:a=1[speech]", n),
	)

	if st.music != "" && req.Music != nil {
		// Loop the bed indefinitely; mixing with duration=first keeps the
		// speech stream in charge of the output length, so music never
		// extends the video.
		args = append(args, "-stream_loop", "-1", "-i", st.music)
		musicIdx := inputIdx

		filters = append(filters, fmt.Sprintf("[speech]volume=%s[speech_gain]", formatGain(req.TTSVolume)))

		musicChain := fmt.Sprintf("[%d:a]aresample=%d,volume=%s", musicIdx, opts.SampleRate, formatGain(req.Music.Volume))
		if windows := muteWindows(req.Segments, tl); windows != "" {
			musicChain += ",volume=0:enable='" + windows + "'"
		}
		musicChain += "[music_gain]"
		filters = append(filters, musicChain)

		filters = append(filters,
			"[speech_gain][music_gain]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]")
	} else {
		filters = append(filters, fmt.Sprintf("[speech]volume=%s[aout]", formatGain(req.TTSVolume)))
	}

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-r", strconv.Itoa(timeline.FPS),
		"-movflags", "+faststart",
		outPath,
	)

	return args
}

// muteWindows returns a filter enable expression covering every segment
// whose flags silence the music bed, or "" when none do.
func muteWindows(segments []timeline.Segment, tl timeline.Timeline) string {
	var windows []string
	for i, seg := range segments {
		if !seg.MusicMuted() {
			continue
		}
		start := tl.StartSec(i)
		end := start + tl.SegmentSec(i)
		windows = append(windows, fmt.Sprintf("between(t,%s,%s)", formatSec(start), formatSec(end)))
	}
	return strings.Join(windows, "+")
}

// formatSec renders a duration for a filter argument with enough precision
// for frame-exact trims at 30 fps.
func formatSec(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// formatGain renders a linear gain without trailing zeros.
func formatGain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
