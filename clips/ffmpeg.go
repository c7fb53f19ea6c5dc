// Package clips materializes short video clips for search results.
package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Materializer cuts the [start, end] range of a video into a clip file
// named after clipID and returns its path. The same clipID must yield the
// same file without re-cutting it.
type Materializer interface {
	Cut(ctx context.Context, videoPath string, start, end float64, clipID string) (string, error)
}

// RunFunc executes an external command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

const clipExt = ".mp4"

// FFmpeg is a Materializer backed by the ffmpeg binary.
type FFmpeg struct {
	dir     string
	binary  string
	run     RunFunc
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *slog.Logger
}

var _ Materializer = (*FFmpeg)(nil)

// Option configures an FFmpeg materializer.
type Option func(*FFmpeg) error

// WithBinary sets the ffmpeg executable. Default is "ffmpeg" from PATH.
func WithBinary(path string) Option {
	return func(f *FFmpeg) error {
		if path == "" {
			return errors.New("ffmpeg binary path is empty")
		}
		f.binary = path
		return nil
	}
}

// WithRunner replaces command execution, mainly for tests.
func WithRunner(run RunFunc) Option {
	return func(f *FFmpeg) error {
		if run == nil {
			run = execRun
		}
		f.run = run
		return nil
	}
}

// WithRateLimit caps how many cuts start per second.
// A non-positive perSecond disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(f *FFmpeg) error {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 0)
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger.With("component", "clips")
		return nil
	}
}

// NewFFmpeg creates a materializer writing clips into dir, creating it if needed.
func NewFFmpeg(dir string, opts ...Option) (*FFmpeg, error) {
	if dir == "" {
		return nil, errors.New("clips directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f := &FFmpeg{
		dir:     dir,
		binary:  "ffmpeg",
		run:     execRun,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  slog.Default().With("component", "clips"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Dir returns the directory clips are written to.
func (f *FFmpeg) Dir() string {
	return f.dir
}

// ClipPath returns where the clip with clipID lives, whether or not it exists yet.
func (f *FFmpeg) ClipPath(clipID string) string {
	return filepath.Join(f.dir, clipID+clipExt)
}

// Cut materializes the clip, reusing an existing file with the same clipID.
// Concurrent calls for one clipID share a single ffmpeg run, and the output
// only appears under its final name once complete.
func (f *FFmpeg) Cut(ctx context.Context, videoPath string, start, end float64, clipID string) (string, error) {
	if err := validateRange(start, end); err != nil {
		return "", err
	}
	if err := validateClipID(clipID); err != nil {
		return "", err
	}
	out := f.ClipPath(clipID)
	if fileExists(out) {
		return out, nil
	}

	v, err, shared := f.group.Do(clipID, func() (any, error) {
		if fileExists(out) {
			return out, nil
		}
		return out, f.cut(ctx, videoPath, start, end, out)
	})
	if err != nil {
		return "", err
	}
	if shared {
		f.logger.Debug("shared in-flight clip cut", "clip", clipID)
	}
	return v.(string), nil
}

func (f *FFmpeg) cut(ctx context.Context, videoPath string, start, end float64, out string) error {
	info, err := os.Stat(videoPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceUnreadable, videoPath)
	}
	src, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	src.Close()

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	tmp := out + ".part"
	// -ss before -i seeks on keyframes, which is fast enough for previews
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", videoPath,
		"-t", formatSeconds(end - start),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-f", "mp4",
		tmp,
	}
	f.logger.Info("cutting clip", "source", videoPath, "start", start, "duration", end-start, "out", out)
	output, err := f.run(ctx, f.binary, args...)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w: %s", ErrCutFailed, err, strings.TrimSpace(string(output)))
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Purge deletes every clip cut from videoID and returns how many were removed.
func (f *FFmpeg) Purge(videoID string) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isClipOf(entry.Name(), videoID) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		f.logger.Info("purged clips", "video", videoID, "count", removed)
	}
	return removed, errors.Join(errs...)
}

// isClipOf matches "{videoID}_{start}_{end}.mp4" exactly, so purging "v1"
// leaves the clips of "v1_2" alone.
func isClipOf(name, videoID string) bool {
	rest, ok := strings.CutPrefix(name, videoID+"_")
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, clipExt)
	if !ok {
		return false
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return false
		}
	}
	return true
}

func validateRange(start, end float64) error {
	for _, v := range []float64{start, end} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound", ErrInvalidRange)
		}
	}
	if start < 0 {
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidRange, start)
	}
	if end <= start {
		return fmt.Errorf("%w: end %.3f is not after start %.3f", ErrInvalidRange, end, start)
	}
	return nil
}

func validateClipID(clipID string) error {
	if clipID == "" || clipID == "." || clipID == ".." ||
		strings.ContainsAny(clipID, `/\`) || strings.IndexByte(clipID, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidClipID, clipID)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
