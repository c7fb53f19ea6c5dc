package clips

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner writes its last argument as the output file.
type fakeRunner struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	args  [][]string
	mu    sync.Mutex
}

func (r *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.args = append(r.args, append([]string{name}, args...))
	r.mu.Unlock()
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	out := args[len(args)-1]
	if r.err != nil {
		os.WriteFile(out, []byte("partial"), 0o644)
		return []byte("encoder exploded"), r.err
	}
	return nil, os.WriteFile(out, []byte("clip"), 0o644)
}

func setup(t *testing.T, runner *fakeRunner) (*FFmpeg, string) {
	t.Helper()
	dir := t.TempDir()
	video := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))

	f, err := NewFFmpeg(filepath.Join(dir, "clips"), WithRunner(runner.run), WithRateLimit(0, 0))
	require.NoError(t, err)
	return f, video
}

func TestCut_WritesClip(t *testing.T) {
	runner := &fakeRunner{}
	f, video := setup(t, runner)

	path, err := f.Cut(context.Background(), video, 9.5, 13.5, "v1_9_13")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.Dir(), "v1_9_13.mp4"), path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".part")

	require.Len(t, runner.args, 1)
	args := runner.args[0]
	assert.Equal(t, "ffmpeg", args[0])
	assert.Contains(t, args, "9.500")
	assert.Contains(t, args, "4.000")
	assert.Contains(t, args, video)
}

func TestCut_ReusesExistingClip(t *testing.T) {
	runner := &fakeRunner{}
	f, video := setup(t, runner)
	ctx := context.Background()

	first, err := f.Cut(ctx, video, 0, 2, "v1_0_2")
	require.NoError(t, err)
	second, err := f.Cut(ctx, video, 0, 2, "v1_0_2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestCut_ConcurrentSameClipRunsOnce(t *testing.T) {
	runner := &fakeRunner{delay: 50 * time.Millisecond}
	f, video := setup(t, runner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Cut(context.Background(), video, 1, 3, "v1_1_3")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestCut_InvalidRange(t *testing.T) {
	runner := &fakeRunner{}
	f, video := setup(t, runner)
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end float64
	}{
		{"negative start", -1, 2},
		{"end before start", 5, 4},
		{"empty range", 3, 3},
		{"nan", math.NaN(), 3},
		{"inf", 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Cut(ctx, video, tt.start, tt.end, "v1_x")
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
	assert.Zero(t, runner.calls.Load())
}

func TestCut_InvalidClipID(t *testing.T) {
	f, video := setup(t, &fakeRunner{})

	for _, id := range []string{"", "..", "../escape", `a\b`} {
		_, err := f.Cut(context.Background(), video, 0, 1, id)
		assert.ErrorIs(t, err, ErrInvalidClipID, id)
	}
}

func TestCut_SourceUnreadable(t *testing.T) {
	runner := &fakeRunner{}
	f, _ := setup(t, runner)

	_, err := f.Cut(context.Background(), "/does/not/exist.mp4", 0, 1, "v1_0_1")
	assert.ErrorIs(t, err, ErrSourceUnreadable)

	_, err = f.Cut(context.Background(), f.Dir(), 0, 1, "v1_0_1")
	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.Zero(t, runner.calls.Load())
}

func TestCut_FailureLeavesNoFile(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	f, video := setup(t, runner)

	_, err := f.Cut(context.Background(), video, 0, 1, "v1_0_1")
	assert.ErrorIs(t, err, ErrCutFailed)
	assert.ErrorContains(t, err, "encoder exploded")
	assert.NoFileExists(t, f.ClipPath("v1_0_1"))
	assert.NoFileExists(t, f.ClipPath("v1_0_1")+".part")
}

func TestPurge(t *testing.T) {
	f, _ := setup(t, &fakeRunner{})
	for _, name := range []string{"v1_0_2.mp4", "v1_10_14.mp4", "v1_2_3_4.mp4", "v10_0_2.mp4", "v1_notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(f.Dir(), name), nil, 0o644))
	}

	removed, err := f.Purge("v1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoFileExists(t, filepath.Join(f.Dir(), "v1_0_2.mp4"))
	assert.FileExists(t, filepath.Join(f.Dir(), "v1_2_3_4.mp4"))
	assert.FileExists(t, filepath.Join(f.Dir(), "v10_0_2.mp4"))
	assert.FileExists(t, filepath.Join(f.Dir(), "v1_notes.txt"))

	removed, err = f.Purge("v1")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNewFFmpeg_RequiresDir(t *testing.T) {
	_, err := NewFFmpeg("")
	assert.Error(t, err)

	_, err = NewFFmpeg(t.TempDir(), WithBinary(""))
	assert.Error(t, err)
}
