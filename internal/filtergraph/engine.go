// Package filtergraph renders a timeline through an explicit ffmpeg filter
// graph: one input per visual and narration branch, ordered concats, an
// optional looped music mix and a single encode pass. The engine is a
// lifecycle-managed resource: one graph execution at a time, a private
// per-call workspace, and guaranteed workspace cleanup on every exit path.
package filtergraph

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slidecast/slidecast-api/internal/render"
	"github.com/slidecast/slidecast-api/internal/render/id"
	"github.com/slidecast/slidecast-api/internal/timeline"
)

// ErrFetchFailed is returned when a staged asset cannot be retrieved.
var ErrFetchFailed = errors.New("filtergraph: asset fetch failed")

// GraphError represents a graph execution failure, carrying the ffmpeg
// invocation and its stderr verbatim.
type GraphError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("filter graph error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// Engine executes filter graphs through the ffmpeg binary. Renders on the
// same engine are serialized; callers share one instance.
type Engine struct {
	mu         sync.Mutex
	ffmpegPath string
	workRoot   string
	outputDir  string
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewEngine creates a filter-graph engine. If ffmpegPath is empty it
// defaults to "ffmpeg" (found via PATH). workRoot hosts the per-call
// workspaces; outputDir receives finished artifacts.
func NewEngine(ffmpegPath, workRoot, outputDir string, opts Options, logger *slog.Logger) (*Engine, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.SampleRate <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, dir := range []string{workRoot, outputDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &Engine{
		ffmpegPath: ffmpegPath,
		workRoot:   workRoot,
		outputDir:  outputDir,
		opts:       opts,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}, nil
}

// Render stages every asset into a private workspace, builds the graph and
// executes it, returning the artifact path.
//
// Cancellation is cooperative only between staging steps: once the graph
// execution starts it runs to completion or failure. The workspace is
// removed on every exit path, success or not.
func (e *Engine) Render(ctx context.Context, req render.Request, tl timeline.Timeline, progress render.ProgressFunc) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	renderID := id.Generate()
	workspace := filepath.Join(e.workRoot, renderID)
	if err := os.MkdirAll(workspace, 0750); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(workspace) }()

	st, err := e.stageAssets(ctx, req, workspace)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	outTmp := filepath.Join(workspace, "out.mp4")
	args := buildArgs(req, tl, st, e.opts, outTmp)

	e.logger.Info("filter graph render started",
		slog.String("render_id", renderID),
		slog.Int("segments", len(req.Segments)),
		slog.Int("total_frames", tl.TotalFrames),
		slog.Bool("music", st.music != ""),
	)

	if err := e.execGraph(args, tl.TotalSec(), progress); err != nil {
		return "", err
	}

	artifact := filepath.Join(e.outputDir, renderID+".mp4")
	if err := moveFile(outTmp, artifact); err != nil {
		return "", fmt.Errorf("deliver artifact: %w", err)
	}

	if progress != nil {
		progress(100)
	}
	return artifact, nil
}

// stageAssets fetches every referenced asset into the workspace, strictly in
// segment order, with segment-indexed names so no two branches collide.
// A context check between steps is the cooperative cancellation point.
func (e *Engine) stageAssets(ctx context.Context, req render.Request, workspace string) (stagedAssets, error) {
	n := len(req.Segments)
	st := stagedAssets{
		visuals:    make([]string, n),
		narrations: make([]string, n),
	}

	for i, seg := range req.Segments {
		if err := ctx.Err(); err != nil {
			return stagedAssets{}, err
		}

		if seg.VisualRef != "" {
			dst := filepath.Join(workspace, fmt.Sprintf("in_v_%03d%s", i, refExt(seg.VisualRef)))
			if err := e.fetch(ctx, seg.VisualRef, dst); err != nil {
				return stagedAssets{}, fmt.Errorf("stage segment %d visual: %w", i, err)
			}
			st.visuals[i] = dst
		}

		if seg.HasNarration() {
			dst := filepath.Join(workspace, fmt.Sprintf("in_a_%03d%s", i, refExt(seg.NarrationRef)))
			if err := e.fetch(ctx, seg.NarrationRef, dst); err != nil {
				return stagedAssets{}, fmt.Errorf("stage segment %d narration: %w", i, err)
			}
			st.narrations[i] = dst
		}
	}

	if req.Music != nil && req.Music.Ref != "" {
		if err := ctx.Err(); err != nil {
			return stagedAssets{}, err
		}
		dst := filepath.Join(workspace, "music"+refExt(req.Music.Ref))
		if err := e.fetch(ctx, req.Music.Ref, dst); err != nil {
			return stagedAssets{}, fmt.Errorf("stage music: %w", err)
		}
		st.music = dst
	}

	return st, nil
}

// fetch retrieves ref into dst. HTTP(S) references are downloaded; anything
// else is treated as a local path and copied.
func (e *Engine) fetch(ctx context.Context, ref, dst string) error {
	var src io.ReadCloser

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		resp, err := e.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return fmt.Errorf("%w: status %d for %s", ErrFetchFailed, resp.StatusCode, ref)
		}
		src = resp.Body
	} else {
		f, err := os.Open(ref) // #nosec G304 - ref was produced by asset resolution
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		src = f
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst) // #nosec G304 - dst is inside the private workspace
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return nil
}

// execGraph runs ffmpeg with machine-readable progress on stdout, reporting
// 0-100 percent against the expected total duration.
func (e *Engine) execGraph(args []string, totalSec float64, progress render.ProgressFunc) error {
	full := append([]string{"-nostats", "-progress", "pipe:1"}, args...)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.Command(e.ffmpegPath, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if us, ok := parseOutTime(scanner.Text()); ok && progress != nil && totalSec > 0 {
			pct := int(float64(us) / (totalSec * 1e6) * 100)
			if pct > 100 {
				pct = 100
			}
			if pct < 0 {
				pct = 0
			}
			progress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		return &GraphError{
			Args:   full,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// parseOutTime extracts the microsecond position from an ffmpeg progress line.
func parseOutTime(line string) (int64, bool) {
	val, ok := strings.CutPrefix(line, "out_time_us=")
	if !ok {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return 0, false
	}
	return us, true
}

// refExt returns the file extension of a reference, tolerating URLs.
func refExt(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return path.Ext(ref)
}

// moveFile renames src to dst, falling back to copy+remove across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) // #nosec G304 - src is inside the private workspace
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 - dst is the configured output dir
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Compile-time check that Engine implements render.Renderer.
var _ render.Renderer = (*Engine)(nil)
