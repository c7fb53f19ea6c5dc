package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/vantage"
	"github.com/poiesic/vantage/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const artifact = `{
	"stats": {
		"Off":     {"mean": 0.0, "std": 0.0, "min": 0.0, "max": 0.0, "count": 10},
		"Perfect": {"mean": 1.0, "std": 0.0, "min": 1.0, "max": 1.0, "count": 10}
	}
}`

const frames = `{"timestamp": 4, "vector": [1, 0, 0], "detected_classes": ["dog"]}

{"timestamp": 5, "vector": [1, 0, 0]}
{"timestamp": 60, "vector": [0, 1, 0]}
`

// writeConfig lays out a data dir with calibration and returns the config path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	calib := filepath.Join(dir, "calibration_results.json")
	require.NoError(t, os.WriteFile(calib, []byte(artifact), 0o644))

	cfg := "data_dir: " + dir + "\n" +
		"calibration:\n  file: " + calib + "\n" +
		"clips:\n  enabled: false\n" +
		"log:\n  level: error\n"
	path := filepath.Join(dir, "vantage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func testApp() (*cli.App, *bytes.Buffer) {
	embedder := mock.NewMockEmbedder().WithEncodeTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	})
	app := newApp(vantage.WithEmbedder(embedder))
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = out
	return app, out
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	app, out := testApp()
	err := app.Run(append([]string{"vantage", "--config", cfgPath}, args...))
	return out.String(), err
}

func writeFrames(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(frames), 0o644))
	return path
}

func TestCommands(t *testing.T) {
	cfg := writeConfig(t)
	framesPath := writeFrames(t)

	out, err := run(t, cfg, "index", "--video", "park", "--owner", "alice", "--frames", framesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 3 frames of park")

	out, err = run(t, cfg, "count")
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(out))

	out, err = run(t, cfg, "search", "--owner", "alice", "--json", "a", "dog", "running")
	require.NoError(t, err)
	var moments []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &moments))
	require.Len(t, moments, 1)
	assert.Equal(t, "park", moments[0]["VideoID"])
	// the dog frame counts once per signal
	assert.EqualValues(t, 3, moments[0]["MatchCount"])
	assert.Equal(t, "vector", moments[0]["MatchType"])

	out, err = run(t, cfg, "search", "--owner", "bob", "dog")
	require.NoError(t, err)
	assert.Contains(t, out, "no moments found")

	out, err = run(t, cfg, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "park")
	assert.Contains(t, out, "completed")

	_, err = run(t, cfg, "delete", "--video", "park", "--owner", "bob")
	require.Error(t, err)

	out, err = run(t, cfg, "delete", "--video", "park", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 3 embeddings")

	out, err = run(t, cfg, "count")
	require.NoError(t, err)
	assert.Equal(t, "0", strings.TrimSpace(out))
}

func TestCalibrationCommand(t *testing.T) {
	out, err := run(t, writeConfig(t), "calibration")
	require.NoError(t, err)
	assert.Contains(t, out, "floor:    0.0000")
	assert.Contains(t, out, "ceiling:  1.0000")
}

func TestCalibrationMissingIsFatal(t *testing.T) {
	cfg := writeConfig(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(cfg), "calibration_results.json")))

	_, err := run(t, cfg, "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal calibration error")
}

func TestFlags(t *testing.T) {
	app := newApp()

	t.Run("search requires owner", func(t *testing.T) {
		_, err := run(t, writeConfig(t), "search", "dog")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner")
	})

	t.Run("search needs a query", func(t *testing.T) {
		_, err := run(t, writeConfig(t), "search", "--owner", "alice")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query")
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := run(t, writeConfig(t), "--log-level", "loud", "count")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("limit defaults to 10", func(t *testing.T) {
		cmd := app.Command("search")
		require.NotNil(t, cmd)
		var limit *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "limit" {
				limit = f
			}
		}
		require.NotNil(t, limit)
		assert.Equal(t, 10, limit.Value)
	})
}
