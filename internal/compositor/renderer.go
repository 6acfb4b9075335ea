// Package compositor renders through an external declarative composition
// engine. The engine understands named compositions and schedules its own
// frame-parallel workers; this package bundles the composition project,
// selects the composition, passes the full render request as input props and
// manages concurrency, cancellation and output lifecycle.
package compositor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/slidecast/slidecast-api/internal/render"
	"github.com/slidecast/slidecast-api/internal/render/id"
	"github.com/slidecast/slidecast-api/internal/timeline"
)

// ErrEnginePathRequired is returned when the engine binary path is empty.
var ErrEnginePathRequired = errors.New("compositor: engine path is required")

// EngineError represents a failure reported by the composition engine,
// carrying the invocation and its stderr verbatim.
type EngineError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("composition engine error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Workers returns the frame-parallel worker count for a host with the given
// core count: half the cores, forced to one on small hosts. A single worker
// on a one-core host keeps the engine from exhausting memory.
func Workers(cores int) int {
	w := cores / 2
	if w < 1 {
		return 1
	}
	return w
}

// Renderer is the declarative composition backend.
type Renderer struct {
	enginePath    string
	entryPoint    string
	registry      *Registry
	compositionID string
	outputDir     string
	logger        *slog.Logger
	numCPU        func() int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithNumCPU overrides how the renderer discovers the host core count.
func WithNumCPU(f func() int) Option {
	return func(r *Renderer) {
		r.numCPU = f
	}
}

// NewRenderer creates the composition renderer.
// enginePath is the composition engine CLI binary; entryPoint is the
// composition project entry bundled once per render.
func NewRenderer(enginePath, entryPoint string, registry *Registry, compositionID, outputDir string, logger *slog.Logger, opts ...Option) (*Renderer, error) {
	if enginePath == "" {
		return nil, ErrEnginePathRequired
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if compositionID == "" {
		compositionID = DefaultDefinition().ID
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Renderer{
		enginePath:    enginePath,
		entryPoint:    entryPoint,
		registry:      registry,
		compositionID: compositionID,
		outputDir:     outputDir,
		logger:        logger,
		numCPU:        runtime.NumCPU,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// inputProps is the full render request serialized for the engine. The
// per-segment frame counts come from the timeline model; the engine never
// re-derives durations.
type inputProps struct {
	Slides      []slideProps `json:"slides"`
	Music       *musicProps  `json:"music,omitempty"`
	TTSVolume   float64      `json:"ttsVolume"`
	FPS         int          `json:"fps"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Frames      []int        `json:"frames"`
	TotalFrames int          `json:"totalFrames"`
}

type slideProps struct {
	VisualRef         string   `json:"visualRef,omitempty"`
	MediaType         string   `json:"mediaType"`
	NarrationRef      string   `json:"narrationRef,omitempty"`
	NarrationSec      *float64 `json:"narrationDurationSec,omitempty"`
	PostDelaySec      *float64 `json:"postDelaySec,omitempty"`
	Transition        string   `json:"transition"`
	DurationFrames    int      `json:"durationFrames"`
	NarrationDisabled bool     `json:"narrationDisabled,omitempty"`
	MusicDisabled     bool     `json:"musicDisabled,omitempty"`
	VideoMusicPaused  bool     `json:"videoMusicPaused,omitempty"`
}

type musicProps struct {
	Ref    string  `json:"ref"`
	Volume float64 `json:"volume"`
}

// Render bundles the composition project, selects the named composition and
// renders it to a uniquely named output path.
//
// The whole call observes ctx: when the caller's connection closes, the
// engine process is signalled and is expected to stop emitting frames
// cooperatively. Cancellation surfaces as context.Canceled, which the
// orchestrator treats as informational rather than a failure.
func (r *Renderer) Render(ctx context.Context, req render.Request, tl timeline.Timeline, _ render.ProgressFunc) (string, error) {
	def, err := r.registry.Get(r.compositionID)
	if err != nil {
		return "", err
	}

	renderID := id.Generate()
	workDir := filepath.Join(r.outputDir, renderID)
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return "", fmt.Errorf("create render directory: %w", err)
	}
	// Bundle and props are intermediates; only the artifact survives.
	defer func() { _ = os.RemoveAll(workDir) }()

	propsPath := filepath.Join(workDir, "props.json")
	if err := r.writeProps(propsPath, req, tl, def); err != nil {
		return "", err
	}

	bundleDir := filepath.Join(workDir, "bundle")
	if err := r.runEngine(ctx, []string{
		"bundle",
		"--entry", r.entryPoint,
		"--out-dir", bundleDir,
	}); err != nil {
		return "", err
	}

	workers := Workers(r.numCPU())
	outPath := filepath.Join(r.outputDir, renderID+".mp4")

	r.logger.Info("composition render started",
		slog.String("render_id", renderID),
		slog.String("composition", def.ID),
		slog.Int("workers", workers),
		slog.Int("total_frames", tl.TotalFrames),
	)

	if err := r.runEngine(ctx, []string{
		"render",
		"--bundle", bundleDir,
		"--composition", def.ID,
		"--props", propsPath,
		"--codec", def.VideoCodec,
		"--audio-codec", def.AudioCodec,
		"--concurrency", strconv.Itoa(workers),
		"--output", outPath,
	}); err != nil {
		// Never leave a partial artifact behind.
		_ = os.Remove(outPath)
		return "", err
	}

	return outPath, nil
}

// writeProps serializes the request plus timeline as the engine's input props.
func (r *Renderer) writeProps(path string, req render.Request, tl timeline.Timeline, def Definition) error {
	props := inputProps{
		Slides:      make([]slideProps, len(req.Segments)),
		TTSVolume:   req.TTSVolume,
		FPS:         def.FPS,
		Width:       def.Width,
		Height:      def.Height,
		Frames:      tl.Frames,
		TotalFrames: tl.TotalFrames,
	}
	for i, s := range req.Segments {
		props.Slides[i] = slideProps{
			VisualRef:         s.VisualRef,
			MediaType:         string(s.MediaType),
			NarrationRef:      s.NarrationRef,
			NarrationSec:      s.NarrationSec,
			PostDelaySec:      s.PostDelaySec,
			Transition:        string(s.Transition),
			DurationFrames:    tl.Frames[i],
			NarrationDisabled: s.NarrationDisabled,
			MusicDisabled:     s.MusicDisabled,
			VideoMusicPaused:  s.VideoMusicPaused,
		}
	}
	if req.Music != nil {
		props.Music = &musicProps{Ref: req.Music.Ref, Volume: req.Music.Volume}
	}

	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal input props: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write input props: %w", err)
	}
	return nil
}

// runEngine executes the engine CLI and returns an error carrying stderr if
// the command fails. Context cancellation is reported as the context error.
func (r *Renderer) runEngine(ctx context.Context, args []string) error {
	// #nosec G204 - enginePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.enginePath, args...)

	// Cancellation asks the engine to stop emitting frames cooperatively.
	// The hard kill only fires if the engine ignores the signal past the
	// wait delay.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("composition engine cancelled: %w", ctx.Err())
		}
		return &EngineError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// Compile-time check that Renderer implements render.Renderer.
var _ render.Renderer = (*Renderer)(nil)
