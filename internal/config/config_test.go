package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv() {
	os.Unsetenv("PORT")
	os.Unsetenv("TEMP_DIR")
	os.Unsetenv("OUTPUT_DIR")
	os.Unsetenv("RENDER_BACKEND")
	os.Unsetenv("CANVAS_WIDTH")
	os.Unsetenv("CANVAS_HEIGHT")
	os.Unsetenv("ENGINE_PATH")
	os.Unsetenv("ENGINE_ENTRY")
	os.Unsetenv("COMPOSITION_MANIFEST")
	os.Unsetenv("COMPOSITION_ID")
	os.Unsetenv("FFMPEG_PATH")
	os.Unsetenv("NARRATION_URL")
	os.Unsetenv("NARRATION_API_KEY")
	os.Unsetenv("S3_BUCKET")
	os.Unsetenv("S3_REGION")
	os.Unsetenv("AWS_ACCESS_KEY_ID")
	os.Unsetenv("AWS_SECRET_ACCESS_KEY")
	os.Unsetenv("LOG_FORMAT")
	os.Unsetenv("LOG_LEVEL")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/slidecast", cfg.TempDir)
	assert.Equal(t, "/tmp/slidecast/out", cfg.OutputDir)
	assert.Equal(t, "filtergraph", cfg.RenderBackend)
	assert.Equal(t, 1920, cfg.CanvasWidth)
	assert.Equal(t, 1080, cfg.CanvasHeight)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("unknown backend is rejected", func(t *testing.T) {
		clearEnv()
		t.Setenv("RENDER_BACKEND", "gpu")

		_, err := Load()
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("composition backend requires an engine path", func(t *testing.T) {
		clearEnv()
		t.Setenv("RENDER_BACKEND", "composition")

		_, err := Load()
		assert.ErrorIs(t, err, ErrEnginePathRequired)
	})

	t.Run("composition backend with engine path succeeds", func(t *testing.T) {
		clearEnv()
		t.Setenv("RENDER_BACKEND", "composition")
		t.Setenv("ENGINE_PATH", "/usr/local/bin/renderer")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/renderer", cfg.EnginePath)
	})
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("NARRATION_URL", "https://tts.internal")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.True(t, cfg.NarrationEnabled())
	assert.True(t, cfg.S3Enabled())
}

func TestS3Enabled(t *testing.T) {
	assert.False(t, (&Config{S3Bucket: "b"}).S3Enabled())
	assert.False(t, (&Config{S3Region: "r"}).S3Enabled())
	assert.True(t, (&Config{S3Bucket: "b", S3Region: "r"}).S3Enabled())
}

func TestNewLogger(t *testing.T) {
	t.Run("json handler", func(t *testing.T) {
		cfg := &Config{LogFormat: "json", LogLevel: "debug"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.True(t, logger.Enabled(nil, slog.LevelDebug))
	})

	t.Run("text handler defaults to info", func(t *testing.T) {
		cfg := &Config{LogFormat: "text", LogLevel: "nonsense"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.False(t, logger.Enabled(nil, slog.LevelDebug))
		assert.True(t, logger.Enabled(nil, slog.LevelInfo))
	})
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		RenderBackend:      "filtergraph",
		NarrationAPIKey:    "super-secret",
		AWSAccessKeyID:     "AKIA123",
		AWSSecretAccessKey: "aws-secret",
	}

	var buf bytes.Buffer
	buf.WriteString(cfg.String())

	assert.NotContains(t, buf.String(), "super-secret")
	assert.NotContains(t, buf.String(), "AKIA123")
	assert.NotContains(t, buf.String(), "aws-secret")
}
