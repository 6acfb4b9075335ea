// Package loudness rewrites a rendered file in place to a target loudness
// using ffmpeg's two-pass EBU R128 loudnorm filter: one measurement pass,
// one linear apply pass. Failures are reported to the caller, which treats
// normalization as best effort.
package loudness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoStats is returned when the measurement pass output contains no
// loudnorm statistics block.
var ErrNoStats = errors.New("loudness: no loudnorm stats in measurement output")

// Options sets the normalization targets.
type Options struct {
	// TargetLoudness is the integrated loudness target in LUFS.
	TargetLoudness float64
	// TruePeak is the maximum true peak in dBTP.
	TruePeak float64
	// LoudnessRange is the target loudness range in LU.
	LoudnessRange float64
}

// DefaultOptions returns targets suited to streaming delivery rather than
// broadcast: louder integrated level, conservative peak headroom.
func DefaultOptions() Options {
	return Options{
		TargetLoudness: -14.0,
		TruePeak:       -1.5,
		LoudnessRange:  11.0,
	}
}

// Stats holds the measured levels from the loudnorm analysis pass. ffmpeg
// reports the values as JSON strings.
type Stats struct {
	InputI       string `json:"input_i"`
	InputTP      string `json:"input_tp"`
	InputLRA     string `json:"input_lra"`
	InputThresh  string `json:"input_thresh"`
	TargetOffset string `json:"target_offset"`
}

// Normalizer runs the two ffmpeg passes.
type Normalizer struct {
	ffmpegPath string
	opts       Options
}

// NewNormalizer creates a Normalizer. If ffmpegPath is empty it defaults to
// "ffmpeg" (found via PATH).
func NewNormalizer(ffmpegPath string, opts Options) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	return &Normalizer{ffmpegPath: ffmpegPath, opts: opts}
}

// Normalize measures path's loudness and rewrites the file in place at the
// target levels. The video stream is copied untouched.
func (n *Normalizer) Normalize(ctx context.Context, path string) error {
	stats, err := n.measure(ctx, path)
	if err != nil {
		return err
	}

	tmp := path + ".loudnorm.mp4"
	if err := n.apply(ctx, path, tmp, stats); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// measure runs the analysis pass and parses the printed stats.
func (n *Normalizer) measure(ctx context.Context, path string) (Stats, error) {
	filter := fmt.Sprintf("loudnorm=I=%g:TP=%g:LRA=%g:print_format=json",
		n.opts.TargetLoudness, n.opts.TruePeak, n.opts.LoudnessRange)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, n.ffmpegPath,
		"-hide_banner",
		"-i", path,
		"-af", filter,
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Stats{}, fmt.Errorf("loudness measure cancelled: %w", ctx.Err())
		}
		return Stats{}, fmt.Errorf("loudness measure: %w, stderr: %s", err, stderr.String())
	}

	return parseStats(stderr.String())
}

// apply runs the second pass with the measured values, linear mode.
func (n *Normalizer) apply(ctx context.Context, src, dst string, stats Stats) error {
	filter := fmt.Sprintf(
		"loudnorm=I=%g:TP=%g:LRA=%g:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true",
		n.opts.TargetLoudness, n.opts.TruePeak, n.opts.LoudnessRange,
		stats.InputI, stats.InputTP, stats.InputLRA, stats.InputThresh, stats.TargetOffset,
	)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, n.ffmpegPath,
		"-y",
		"-i", src,
		"-af", filter,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("loudness apply cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("loudness apply: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// parseStats extracts the trailing JSON stats block ffmpeg prints after the
// analysis pass.
func parseStats(output string) (Stats, error) {
	start := strings.LastIndex(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end < start {
		return Stats{}, ErrNoStats
	}

	var stats Stats
	if err := json.Unmarshal([]byte(output[start:end+1]), &stats); err != nil {
		return Stats{}, fmt.Errorf("parse loudnorm stats: %w", err)
	}
	if stats.InputI == "" {
		return Stats{}, ErrNoStats
	}
	return stats, nil
}
