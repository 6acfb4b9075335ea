package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/slidecast-api/internal/timeline"
)

type fakeResolver struct {
	err      error
	musicErr error
	calls    int
}

func (f *fakeResolver) ResolveSegments(_ context.Context, segments []timeline.Segment) ([]timeline.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return segments, nil
}

func (f *fakeResolver) ResolveMusicRef(_ context.Context, ref string) (string, error) {
	if f.musicErr != nil {
		return "", f.musicErr
	}
	return ref, nil
}

type fakeRenderer struct {
	artifact string
	err      error
	calls    int
	lastReq  Request
	lastTL   timeline.Timeline
}

func (f *fakeRenderer) Render(_ context.Context, req Request, tl timeline.Timeline, _ ProgressFunc) (string, error) {
	f.calls++
	f.lastReq = req
	f.lastTL = tl
	return f.artifact, f.err
}

type fakeNormalizer struct {
	err   error
	calls int
	path  string
}

func (f *fakeNormalizer) Normalize(_ context.Context, path string) error {
	f.calls++
	f.path = path
	return f.err
}

func newTestService(t *testing.T, resolver *fakeResolver, comp, fg *fakeRenderer, norm *fakeNormalizer, backend Backend) *Service {
	t.Helper()
	svc, err := NewService(resolver, comp, fg, norm, backend, nil)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Run("rejects unknown backend", func(t *testing.T) {
		_, err := NewService(&fakeResolver{}, &fakeRenderer{}, &fakeRenderer{}, &fakeNormalizer{}, Backend("webgl"), nil)
		require.ErrorIs(t, err, ErrUnknownBackend)
	})
}

func TestServiceRender(t *testing.T) {
	segs := []timeline.Segment{{VisualRef: "https://cdn.test/a.png", MediaType: timeline.MediaImage}}

	t.Run("empty segment list rejected before any work", func(t *testing.T) {
		resolver := &fakeResolver{}
		fg := &fakeRenderer{}
		svc := newTestService(t, resolver, &fakeRenderer{}, fg, &fakeNormalizer{}, BackendFilterGraph)

		_, err := svc.Render(context.Background(), Request{}, nil)
		require.ErrorIs(t, err, ErrNoSegments)
		assert.Zero(t, resolver.calls)
		assert.Zero(t, fg.calls)
	})

	t.Run("selects the configured backend", func(t *testing.T) {
		comp := &fakeRenderer{artifact: "/out/comp.mp4"}
		fg := &fakeRenderer{artifact: "/out/fg.mp4"}

		svc := newTestService(t, &fakeResolver{}, comp, fg, &fakeNormalizer{}, BackendComposition)
		path, err := svc.Render(context.Background(), Request{Segments: segs}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/out/comp.mp4", path)
		assert.Equal(t, 1, comp.calls)
		assert.Zero(t, fg.calls)

		svc = newTestService(t, &fakeResolver{}, comp, fg, &fakeNormalizer{}, BackendFilterGraph)
		path, err = svc.Render(context.Background(), Request{Segments: segs}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/out/fg.mp4", path)
		assert.Equal(t, 1, fg.calls)
	})

	t.Run("renderer receives the computed timeline", func(t *testing.T) {
		fg := &fakeRenderer{artifact: "/out/fg.mp4"}
		svc := newTestService(t, &fakeResolver{}, &fakeRenderer{}, fg, &fakeNormalizer{}, BackendFilterGraph)

		_, err := svc.Render(context.Background(), Request{Segments: []timeline.Segment{{}, {}, {}}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 450, fg.lastTL.TotalFrames)
	})

	t.Run("resolution failure aborts before rendering", func(t *testing.T) {
		wantErr := errors.New("upload refused")
		fg := &fakeRenderer{}
		svc := newTestService(t, &fakeResolver{err: wantErr}, &fakeRenderer{}, fg, &fakeNormalizer{}, BackendFilterGraph)

		_, err := svc.Render(context.Background(), Request{Segments: segs}, nil)
		require.ErrorIs(t, err, wantErr)
		assert.Zero(t, fg.calls)
	})

	t.Run("render failure surfaces and skips normalization", func(t *testing.T) {
		wantErr := errors.New("engine exploded")
		norm := &fakeNormalizer{}
		fg := &fakeRenderer{err: wantErr}
		svc := newTestService(t, &fakeResolver{}, &fakeRenderer{}, fg, norm, BackendFilterGraph)

		_, err := svc.Render(context.Background(), Request{Segments: segs}, nil)
		require.ErrorIs(t, err, wantErr)
		assert.Zero(t, norm.calls)
	})

	t.Run("cancellation is returned unwrapped and unnormalized", func(t *testing.T) {
		norm := &fakeNormalizer{}
		comp := &fakeRenderer{err: context.Canceled}
		svc := newTestService(t, &fakeResolver{}, comp, &fakeRenderer{}, norm, BackendComposition)

		_, err := svc.Render(context.Background(), Request{Segments: segs}, nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, norm.calls)
	})

	t.Run("normalization failure is swallowed", func(t *testing.T) {
		norm := &fakeNormalizer{err: errors.New("loudnorm pass failed")}
		fg := &fakeRenderer{artifact: "/out/fg.mp4"}
		svc := newTestService(t, &fakeResolver{}, &fakeRenderer{}, fg, norm, BackendFilterGraph)

		path, err := svc.Render(context.Background(), Request{Segments: segs}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/out/fg.mp4", path)
		assert.Equal(t, 1, norm.calls)
	})

	t.Run("normalization skipped when disabled", func(t *testing.T) {
		norm := &fakeNormalizer{}
		fg := &fakeRenderer{artifact: "/out/fg.mp4"}
		svc := newTestService(t, &fakeResolver{}, &fakeRenderer{}, fg, norm, BackendFilterGraph)

		_, err := svc.Render(context.Background(), Request{Segments: segs, DisableNormalization: true}, nil)
		require.NoError(t, err)
		assert.Zero(t, norm.calls)
	})

	t.Run("music ref is resolved alongside segments", func(t *testing.T) {
		fg := &fakeRenderer{artifact: "/out/fg.mp4"}
		svc := newTestService(t, &fakeResolver{}, &fakeRenderer{}, fg, &fakeNormalizer{}, BackendFilterGraph)

		req := Request{Segments: segs, Music: &MusicTrack{Ref: "https://cdn.test/bed.mp3", Volume: 0.2}}
		_, err := svc.Render(context.Background(), req, nil)
		require.NoError(t, err)
		require.NotNil(t, fg.lastReq.Music)
		assert.Equal(t, 0.2, fg.lastReq.Music.Volume)

		// The caller's request is not mutated.
		assert.NotSame(t, req.Music, fg.lastReq.Music)
	})
}

func TestServiceTimeline(t *testing.T) {
	svc := newTestService(t, &fakeResolver{}, &fakeRenderer{}, &fakeRenderer{}, &fakeNormalizer{}, BackendFilterGraph)

	t.Run("empty list rejected", func(t *testing.T) {
		_, err := svc.Timeline(nil)
		require.ErrorIs(t, err, ErrNoSegments)
	})

	t.Run("matches the timeline model", func(t *testing.T) {
		tl, err := svc.Timeline([]timeline.Segment{{}, {}, {}})
		require.NoError(t, err)
		assert.Equal(t, 450, tl.TotalFrames)
	})
}
