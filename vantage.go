// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package vantage wires the moment retrieval engine: frame index, calibration,
// query embedder, clip materializer, job store, searcher and indexing pipeline.
package vantage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/vantage/ai"
	"github.com/poiesic/vantage/ai/openai"
	"github.com/poiesic/vantage/calibration"
	"github.com/poiesic/vantage/clips"
	"github.com/poiesic/vantage/config"
	"github.com/poiesic/vantage/core"
	"github.com/poiesic/vantage/ingestion"
	"github.com/poiesic/vantage/search"
	"github.com/poiesic/vantage/storage"
	"github.com/poiesic/vantage/storage/badger"
	"github.com/poiesic/vantage/storage/sqlite"
)

// Engine owns every component of the moment retrieval service.
type Engine struct {
	backend     *badger.Backend
	frames      *badger.FrameRepository
	jobs        *sqlite.JobStore
	calibration *calibration.Model
	clips       *clips.FFmpeg
	searcher    *search.Searcher
	pipeline    *ingestion.Pipeline
	logger      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	embedder   ai.Embedder
	clipRunner clips.RunFunc
	logger     *slog.Logger
}

// WithEmbedder replaces the OpenAI-compatible query embedder.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *engineOptions) {
		o.embedder = embedder
	}
}

// WithClipRunner replaces how the ffmpeg command is executed.
func WithClipRunner(run clips.RunFunc) Option {
	return func(o *engineOptions) {
		o.clipRunner = run
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// DeleteResult counts what DeleteVideo removed.
type DeleteResult struct {
	Embeddings int
	Clips      int
}

// Open builds an Engine from cfg. A missing or malformed calibration
// artifact fails with *calibration.FatalError before any store is opened.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	model, err := calibration.Load(cfg.Calibration.File,
		calibration.WithCategories(cfg.Calibration.OffCategory, cfg.Calibration.ExactCategory))
	if err != nil {
		logger.Error("calibration failed, refusing to serve search", "err", err)
		return nil, err
	}
	logger.Info("calibration loaded", "floor", model.Floor(), "ceiling", model.Ceiling())

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(ai.NewConfig(
			ai.WithEmbeddingHost(cfg.Embedding.Host),
			ai.WithEmbeddingModel(cfg.Embedding.Model),
			ai.WithAPIToken(cfg.Embedding.Token),
			ai.WithDimensions(cfg.Embedding.Dimensions),
		))
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
	}

	e := &Engine{calibration: model, logger: logger}
	if err := e.open(cfg, embedder, options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) open(cfg *config.Config, embedder ai.Embedder, options *engineOptions) error {
	var err error
	e.backend, err = badger.OpenBackend(cfg.IndexDir, false)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	e.frames = badger.NewFrameRepository(e.backend)

	e.jobs, err = sqlite.OpenJobStore(cfg.JobsDB)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}

	searchOpts := []search.Option{
		search.WithLogger(e.logger),
		search.WithConfidenceThreshold(cfg.Search.ConfidenceThreshold),
		search.WithClusterBuffer(cfg.Search.ClusterBuffer),
		search.WithTimePadding(cfg.Search.TimePadding),
		search.WithCandidateMultiplier(cfg.Search.CandidateMultiplier),
		search.WithStopWords(cfg.Search.StopWords),
		search.WithEmbedTimeout(cfg.Search.EmbedTimeout),
		search.WithIndexTimeout(cfg.Search.IndexTimeout),
		search.WithClipURLPrefix(cfg.Clips.URLPrefix),
	}
	if cfg.Search.PoolSize > 0 {
		searchOpts = append(searchOpts, search.WithPoolSize(cfg.Search.PoolSize))
	}

	if cfg.Clips.Enabled {
		clipOpts := []clips.Option{
			clips.WithLogger(e.logger),
			clips.WithRateLimit(cfg.Clips.RatePerSecond, cfg.Clips.Burst),
		}
		if cfg.Clips.FFmpeg != "" {
			clipOpts = append(clipOpts, clips.WithBinary(cfg.Clips.FFmpeg))
		}
		if options.clipRunner != nil {
			clipOpts = append(clipOpts, clips.WithRunner(options.clipRunner))
		}
		e.clips, err = clips.NewFFmpeg(cfg.Clips.Dir, clipOpts...)
		if err != nil {
			return fmt.Errorf("clips: %w", err)
		}
		searchOpts = append(searchOpts,
			search.WithClipMaterializer(e.clips),
			search.WithClipTimeout(cfg.Clips.Timeout),
		)
	}

	e.searcher, err = search.NewSearcher(e.frames, e.frames, embedder, e.calibration, searchOpts...)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(e.logger),
		ingestion.WithJobStore(e.jobs),
		ingestion.WithRetry(cfg.Ingestion.MaxAttempts, cfg.Ingestion.RetryDelay),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	e.pipeline, err = ingestion.NewPipeline(e.frames, pipelineOpts...)
	return err
}

// Search returns up to limit moments of ownerID's videos matching query.
func (e *Engine) Search(ctx context.Context, query, ownerID string, limit int) ([]core.Moment, error) {
	return e.searcher.Search(ctx, query, ownerID, limit)
}

// SearchWithMonitor is Search with stage callbacks.
func (e *Engine) SearchWithMonitor(ctx context.Context, query, ownerID string, limit int, monitor search.SearchMonitor) ([]core.Moment, error) {
	return e.searcher.SearchWithMonitor(ctx, query, ownerID, limit, monitor)
}

// IndexVideo indexes job synchronously and returns the number of frames stored.
func (e *Engine) IndexVideo(ctx context.Context, job ingestion.Job) (int, error) {
	if err := e.checkVideoOwner(ctx, job.VideoID, job.OwnerID); err != nil {
		return 0, err
	}
	return e.pipeline.Index(ctx, job)
}

// SubmitVideo queues job for background indexing.
func (e *Engine) SubmitVideo(ctx context.Context, job ingestion.Job, done func(ingestion.Result)) error {
	if err := e.checkVideoOwner(ctx, job.VideoID, job.OwnerID); err != nil {
		return err
	}
	return e.pipeline.Submit(job, done)
}

// DeleteVideo removes the embeddings, cached clips and job record of videoID.
// Videos indexed for another owner are refused with core.ErrOwnerMismatch.
func (e *Engine) DeleteVideo(ctx context.Context, videoID, ownerID string) (DeleteResult, error) {
	var result DeleteResult
	if err := e.checkVideoOwner(ctx, videoID, ownerID); err != nil {
		return result, err
	}

	n, err := e.frames.DeleteByVideo(ctx, videoID)
	if err != nil {
		return result, fmt.Errorf("delete embeddings: %w", err)
	}
	result.Embeddings = n

	if e.clips != nil {
		// Clips are a cache; a purge failure is only logged
		removed, err := e.clips.Purge(videoID)
		if err != nil {
			e.logger.Warn("failed to purge clips", "video", videoID, "err", err)
		}
		result.Clips = removed
	}

	if err := e.jobs.Delete(ctx, videoID); err != nil {
		return result, fmt.Errorf("delete job: %w", err)
	}
	e.logger.Info("deleted video", "video", videoID, "embeddings", result.Embeddings, "clips", result.Clips)
	return result, nil
}

// Frame returns one stored frame record of ownerID.
func (e *Engine) Frame(ctx context.Context, id, ownerID string) (*core.EmbeddingRecord, error) {
	return e.frames.Get(ctx, id, ownerID)
}

// Count returns the number of stored frame records.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.frames.Count(ctx)
}

// Jobs lists the indexing jobs of ownerID, or of everyone when ownerID is empty.
func (e *Engine) Jobs(ctx context.Context, ownerID string) ([]*sqlite.Job, error) {
	return e.jobs.List(ctx, ownerID)
}

// Calibration returns the loaded calibration model.
func (e *Engine) Calibration() *calibration.Model {
	return e.calibration
}

// Wait blocks until background indexing jobs finish.
func (e *Engine) Wait() {
	if e.pipeline != nil {
		e.pipeline.Wait()
	}
}

// Close waits for background jobs and releases every store.
// Subsequent calls return the first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.close()
	})
	return e.closeErr
}

func (e *Engine) close() error {
	var errs []error
	if e.pipeline != nil {
		e.pipeline.Wait()
		e.pipeline.Release()
	}
	if e.searcher != nil {
		e.searcher.Release()
	}
	if e.jobs != nil {
		if err := e.jobs.Close(); err != nil {
			e.logger.Error("error closing job store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.frames != nil {
		e.frames.Close()
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkVideoOwner refuses to touch a video already recorded for another owner.
func (e *Engine) checkVideoOwner(ctx context.Context, videoID, ownerID string) error {
	if ownerID == "" {
		return core.ErrEmptyOwnerID
	}
	job, err := e.jobs.Get(ctx, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if job.OwnerID != ownerID {
		return fmt.Errorf("%w: video %s", core.ErrOwnerMismatch, videoID)
	}
	return nil
}
