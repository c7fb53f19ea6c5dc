package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vantage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.Search.ConfidenceThreshold)
	assert.Equal(t, 2.0, cfg.Search.ClusterBuffer)
	assert.Equal(t, 0.5, cfg.Search.TimePadding)
	assert.Equal(t, 10, cfg.Search.CandidateMultiplier)
	assert.Len(t, cfg.Search.StopWords, 13)
	assert.Equal(t, "Off", cfg.Calibration.OffCategory)
	assert.Equal(t, "Perfect", cfg.Calibration.ExactCategory)
	assert.Equal(t, filepath.Join("data", "index"), cfg.IndexDir)
	assert.Equal(t, filepath.Join("data", "jobs.db"), cfg.JobsDB)
	assert.Equal(t, filepath.Join("data", "clips"), cfg.Clips.Dir)
	assert.Equal(t, 2*time.Minute, cfg.Clips.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/vantage
calibration:
  file: /etc/vantage/calibration.json
  exact_category: Exact
search:
  cluster_buffer_seconds: 3.5
  embed_timeout: 2s
  stop_words: [the, a]
clips:
  enabled: false
ingestion:
  retry_delay: 250ms
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/vantage/index", cfg.IndexDir)
	assert.Equal(t, "/etc/vantage/calibration.json", cfg.Calibration.File)
	assert.Equal(t, "Exact", cfg.Calibration.ExactCategory)
	assert.Equal(t, "Off", cfg.Calibration.OffCategory)
	assert.Equal(t, 3.5, cfg.Search.ClusterBuffer)
	assert.Equal(t, 2*time.Second, cfg.Search.EmbedTimeout)
	assert.Equal(t, 10*time.Second, cfg.Search.IndexTimeout)
	assert.Equal(t, []string{"the", "a"}, cfg.Search.StopWords)
	assert.False(t, cfg.Clips.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingestion.RetryDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("VANTAGE_DATA_DIR", "/tmp/vantage")
	t.Setenv("VANTAGE_EMBEDDING_MODEL", "clip")
	t.Setenv("VANTAGE_CLIPS_ENABLED", "false")
	t.Setenv("VANTAGE_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "embedding:\n  model: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "clip", cfg.Embedding.Model)
	assert.Equal(t, "/tmp/vantage/jobs.db", cfg.JobsDB)
	assert.False(t, cfg.Clips.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(writeConfig(t, "serach:\n  pool_size: 2\n"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "search:\n  confidence_threshold: 2\n  candidate_multiplier: 0\n"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "confidence_threshold")
		assert.ErrorContains(t, err, "candidate_multiplier")
	})

	t.Run("non-positive clip timeout", func(t *testing.T) {
		_, err := Load(writeConfig(t, "clips:\n  timeout: 0s\n"))
		assert.ErrorContains(t, err, "clips.timeout")
	})

	t.Run("bad env bool", func(t *testing.T) {
		t.Setenv("VANTAGE_CLIPS_ENABLED", "maybe")
		_, err := Load("")
		assert.ErrorContains(t, err, "VANTAGE_CLIPS_ENABLED")
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("VANTAGE_LOG_LEVEL", "loud")
		_, err := Load("")
		assert.ErrorContains(t, err, "loud")
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("indexed video", "video", "v1")

	assert.Contains(t, stderr.String(), "indexed video")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "v1", entry["video"])
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vantage.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
