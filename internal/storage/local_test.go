package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates assets directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "store")
		s, err := NewLocalStorage(root)
		require.NoError(t, err)
		assert.Equal(t, root, s.RootDir())

		info, err := os.Stat(filepath.Join(root, "assets"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty root falls back to temp dir", func(t *testing.T) {
		s, err := NewLocalStorage("")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(s.RootDir(), os.TempDir()))
	})
}

func TestLocalStorageUpload(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	t.Run("writes payload and returns absolute path", func(t *testing.T) {
		url, err := s.Upload(context.Background(), "slide_000.png", strings.NewReader("payload"))
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(url))

		data, err := os.ReadFile(url)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("strips path components from key", func(t *testing.T) {
		url, err := s.Upload(context.Background(), "../../etc/narration_001.wav", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "narration_001.wav", filepath.Base(url))
		assert.True(t, strings.HasPrefix(url, s.RootDir()))
	})

	t.Run("cancelled context aborts upload", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Upload(ctx, "late.png", strings.NewReader("x"))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
