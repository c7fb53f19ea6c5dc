package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vantage/core"
	"github.com/poiesic/vantage/storage"
)

// Job describes one video to index.
type Job struct {
	VideoID   string
	OwnerID   string
	VideoPath string
	Source    FrameSource
}

// Result reports the outcome of an asynchronous job.
type Result struct {
	VideoID string
	Frames  int
	Err     error
}

// Pipeline indexes videos into a frame index and records job status.
type Pipeline struct {
	index       storage.VectorIndex
	jobs        storage.JobStatusWriter
	pool        *ants.Pool
	wg          sync.WaitGroup
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many jobs run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithRetry sets how often a failing frame write is attempted and the first backoff delay.
// Default is 3 attempts starting at 100ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// WithJobStore records job status transitions. Without one they are only logged.
func WithJobStore(jobs storage.JobStatusWriter) Option {
	return func(p *Pipeline) error {
		p.jobs = jobs
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(index storage.VectorIndex, opts ...Option) (*Pipeline, error) {
	if index == nil {
		return nil, ErrFrameIndexRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		index:       index,
		pool:        pool,
		maxAttempts: 3,
		baseDelay:   100 * time.Millisecond,
		logger:      slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Index runs job to completion and returns the number of frames stored.
// Embeddings from a previous attempt are removed first, so a retried job
// never leaves stale frames behind.
func (p *Pipeline) Index(ctx context.Context, job Job) (int, error) {
	if err := validateJob(job); err != nil {
		return 0, err
	}
	logger := p.logger.With("video", job.VideoID, "owner", job.OwnerID)

	if err := p.setStatus(ctx, job, core.JobProcessing, ""); err != nil {
		return 0, err
	}

	count, err := p.index.DeleteByVideo(ctx, job.VideoID)
	if err != nil {
		return 0, p.fail(ctx, job, fmt.Errorf("clear previous embeddings: %w", err))
	}
	if count > 0 {
		logger.Info("cleared previous embeddings", "count", count)
	}

	start := time.Now()
	frames := 0
	for {
		frame, err := job.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, p.fail(ctx, job, err)
		}
		if err := p.addFrame(ctx, job, frame); err != nil {
			return frames, p.fail(ctx, job, err)
		}
		frames++
	}

	if err := p.setStatus(ctx, job, core.JobCompleted, ""); err != nil {
		return frames, err
	}
	logger.Info("indexed video", "frames", frames, "elapsed", time.Since(start))
	return frames, nil
}

// Submit queues job on the worker pool. done, if non-nil, receives the result.
// The job runs detached from any request context.
func (p *Pipeline) Submit(job Job, done func(Result)) error {
	if err := validateJob(job); err != nil {
		return err
	}
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		frames, err := p.Index(context.Background(), job)
		if err != nil {
			p.logger.Error("indexing job failed", "video", job.VideoID, "err", err)
		}
		if done != nil {
			done(Result{VideoID: job.VideoID, Frames: frames, Err: err})
		}
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) addFrame(ctx context.Context, job Job, frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	vector := slices.Clone(frame.Vector)
	core.Normalize(vector)

	meta := core.FrameMetadata{
		VideoID:          job.VideoID,
		OwnerID:          job.OwnerID,
		Timestamp:        frame.Timestamp,
		VideoPath:        job.VideoPath,
		DetectedClasses:  slices.Clone(frame.DetectedClasses),
		ClassConfidences: maps.Clone(frame.ClassConfidences),
	}
	record := &core.EmbeddingRecord{Vector: vector, Metadata: meta}
	if err := core.ValidateEmbeddingRecord(record); err != nil {
		return fmt.Errorf("%w at %.3fs: %w", ErrInvalidFrame, frame.Timestamp, err)
	}

	id := core.FrameID(job.VideoID, frame.Timestamp)
	return RetryWithBackoff(ctx, func() error {
		_, err := p.index.Add(ctx, vector, meta, id)
		return err
	}, p.maxAttempts, p.baseDelay)
}

func (p *Pipeline) fail(ctx context.Context, job Job, cause error) error {
	// Record the failure even when the job was cancelled
	if err := p.setStatus(context.WithoutCancel(ctx), job, core.JobFailed, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (p *Pipeline) setStatus(ctx context.Context, job Job, status core.JobStatus, message string) error {
	p.logger.Debug("job status", "video", job.VideoID, "status", status, "message", message)
	if p.jobs == nil {
		return nil
	}
	if err := p.jobs.UpdateStatus(ctx, job.VideoID, job.OwnerID, status, message); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func validateJob(job Job) error {
	if job.VideoID == "" {
		return core.ErrEmptyVideoID
	}
	if job.OwnerID == "" {
		return core.ErrEmptyOwnerID
	}
	if err := core.ValidateKey(job.VideoID); err != nil {
		return err
	}
	if job.Source == nil {
		return ErrFrameSourceRequired
	}
	return nil
}
