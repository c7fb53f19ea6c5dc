package search

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vantage/ai"
	"github.com/poiesic/vantage/clips"
	"github.com/poiesic/vantage/core"
	"github.com/poiesic/vantage/storage"
)

const (
	DefaultConfidenceThreshold = 0.25
	DefaultClusterBuffer       = 2.0
	DefaultTimePadding         = 0.5
	DefaultCandidateMultiplier = 10
	DefaultEmbedTimeout        = 10 * time.Second
	DefaultIndexTimeout        = 10 * time.Second
	DefaultClipURLPrefix       = "/clips/"
	DefaultClipTimeout         = 2 * time.Minute
)

// Searcher turns queries into ranked moments.
type Searcher struct {
	vectors    storage.VectorIndex
	tags       storage.TagIndex
	embedder   ai.Embedder
	calibrator Calibrator
	clips      clips.Materializer
	pool       *ants.Pool
	logger     *slog.Logger

	stopWords     map[string]bool
	threshold     float64
	buffer        float64
	padding       float64
	multiplier    int
	embedTimeout  time.Duration
	indexTimeout  time.Duration
	clipTimeout   time.Duration
	clipURLPrefix string
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithConfidenceThreshold drops vector candidates below threshold.
// Default is 0.25.
func WithConfidenceThreshold(threshold float64) Option {
	return func(s *Searcher) error {
		if threshold < 0 || threshold > 1 {
			return errors.New("confidence threshold must be within [0, 1]")
		}
		s.threshold = threshold
		return nil
	}
}

// WithClusterBuffer sets the largest gap in seconds between consecutive
// frames of one cluster. Default is 2.0.
func WithClusterBuffer(seconds float64) Option {
	return func(s *Searcher) error {
		if seconds < 0 {
			return errors.New("cluster buffer must not be negative")
		}
		s.buffer = seconds
		return nil
	}
}

// WithTimePadding sets the seconds added on each side of a cluster's span.
// Default is 0.5.
func WithTimePadding(seconds float64) Option {
	return func(s *Searcher) error {
		if seconds < 0 {
			return errors.New("time padding must not be negative")
		}
		s.padding = seconds
		return nil
	}
}

// WithCandidateMultiplier sets how many candidates per requested moment each
// signal may contribute. Default is 10.
func WithCandidateMultiplier(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return errors.New("candidate multiplier must be at least 1")
		}
		s.multiplier = n
		return nil
	}
}

// WithStopWords replaces the words ignored by tag matching.
func WithStopWords(words []string) Option {
	return func(s *Searcher) error {
		s.stopWords = StopWordSet(words)
		return nil
	}
}

// WithEmbedTimeout bounds query encoding. Default is 10s.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Searcher) error {
		if d <= 0 {
			return errors.New("embed timeout must be positive")
		}
		s.embedTimeout = d
		return nil
	}
}

// WithIndexTimeout bounds each vector query and tag scan. Default is 10s.
func WithIndexTimeout(d time.Duration) Option {
	return func(s *Searcher) error {
		if d <= 0 {
			return errors.New("index timeout must be positive")
		}
		s.indexTimeout = d
		return nil
	}
}

// WithClipMaterializer enables clip cutting for returned moments.
// Without one, moments carry no clip.
func WithClipMaterializer(m clips.Materializer) Option {
	return func(s *Searcher) error {
		s.clips = m
		return nil
	}
}

// WithClipTimeout bounds each clip cut. Default is 2m.
func WithClipTimeout(d time.Duration) Option {
	return func(s *Searcher) error {
		if d <= 0 {
			return errors.New("clip timeout must be positive")
		}
		s.clipTimeout = d
		return nil
	}
}

// WithClipURLPrefix sets the prefix joined with a clip id to form its URL.
// Default is "/clips/".
func WithClipURLPrefix(prefix string) Option {
	return func(s *Searcher) error {
		s.clipURLPrefix = prefix
		return nil
	}
}

// WithPoolSize sets the worker pool size shared by concurrent searches.
// Default is runtime.NumCPU(), with a minimum of 2.
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 2 {
			size = 2
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	vectors storage.VectorIndex,
	tags storage.TagIndex,
	embedder ai.Embedder,
	calibrator Calibrator,
	opts ...Option,
) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if tags == nil {
		return nil, ErrTagIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if calibrator == nil {
		return nil, ErrCalibratorRequired
	}

	poolSize := max(runtime.NumCPU(), 2)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		vectors:       vectors,
		tags:          tags,
		embedder:      embedder,
		calibrator:    calibrator,
		pool:          pool,
		logger:        slog.Default(),
		stopWords:     StopWordSet(DefaultStopWords),
		threshold:     DefaultConfidenceThreshold,
		buffer:        DefaultClusterBuffer,
		padding:       DefaultTimePadding,
		multiplier:    DefaultCandidateMultiplier,
		embedTimeout:  DefaultEmbedTimeout,
		indexTimeout:  DefaultIndexTimeout,
		clipTimeout:   DefaultClipTimeout,
		clipURLPrefix: DefaultClipURLPrefix,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.pool.Release()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// Release stops the worker pool. The searcher must not be used afterwards.
func (s *Searcher) Release() {
	s.pool.Release()
}

// Search returns up to limit moments matching query within ownerID's videos.
func (s *Searcher) Search(ctx context.Context, query, ownerID string, limit int) ([]core.Moment, error) {
	return s.SearchWithMonitor(ctx, query, ownerID, limit, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
// Only caller errors and cancellation fail the search; index, embedding
// and clip failures degrade it.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query, ownerID string, limit int, monitor SearchMonitor) ([]core.Moment, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	monitor.Start(query, ownerID)
	budget := limit * s.multiplier
	words := SignificantWords(query, s.stopWords)

	var (
		wg                sync.WaitGroup
		vectorMatches     []core.VectorMatch
		tagMatches        []core.TagMatch
		vectorErr, tagErr *DegradedError
	)
	wg.Add(2)
	s.submit(func() {
		defer wg.Done()
		vectorMatches, vectorErr = s.vectorLeg(ctx, query, ownerID, budget)
	})
	s.submit(func() {
		defer wg.Done()
		tagMatches, tagErr = s.tagLeg(ctx, words, ownerID, budget)
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, derr := range []*DegradedError{vectorErr, tagErr} {
		if derr != nil {
			s.degrade(monitor, derr)
		}
	}
	monitor.AfterVectorSearch(vectorMatches)
	monitor.AfterTagSearch(words, tagMatches)

	groups := Merge(VectorCandidates(vectorMatches, s.calibrator), TagCandidates(tagMatches), s.threshold)
	monitor.AfterMerge(groups)

	// Sorted video ids make discovery order, and so tie-breaking, reproducible
	var moments []core.Moment
	for _, videoID := range slices.Sorted(maps.Keys(groups)) {
		for _, cluster := range ClusterCandidates(groups[videoID], s.buffer) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			monitor.ClusterFound(videoID, cluster)
			moments = append(moments, BuildMoment(cluster, s.padding))
		}
	}

	slices.SortStableFunc(moments, func(a, b core.Moment) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if len(moments) > limit {
		moments = moments[:limit]
	}

	s.attachClips(ctx, moments, monitor)
	if moments == nil {
		moments = []core.Moment{}
	}
	monitor.Finish(moments)
	return moments, nil
}

func (s *Searcher) vectorLeg(ctx context.Context, query, ownerID string, budget int) ([]core.VectorMatch, *DegradedError) {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	vector, err := s.embedder.EncodeText(embedCtx, query)
	cancel()
	if err == nil {
		err = core.ValidateVector(vector)
	}
	if err != nil {
		return nil, &DegradedError{Stage: StageEmbed, Err: err}
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	defer cancel()
	matches, err := s.vectors.Query(queryCtx, vector, budget, ownerID)
	if err != nil {
		return nil, &DegradedError{Stage: StageVector, Err: err}
	}
	return matches, nil
}

func (s *Searcher) tagLeg(ctx context.Context, words []string, ownerID string, budget int) ([]core.TagMatch, *DegradedError) {
	if len(words) == 0 {
		return nil, nil
	}
	scanCtx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	defer cancel()
	matches, err := s.tags.ScanTags(scanCtx, words, ownerID, budget)
	if err != nil {
		return nil, &DegradedError{Stage: StageTag, Err: err}
	}
	return matches, nil
}

// attachClips cuts clips for the returned moments in parallel. Cuts already
// started run to completion or the clip timeout even if the caller goes
// away; cuts not yet started are skipped.
func (s *Searcher) attachClips(ctx context.Context, moments []core.Moment, monitor SearchMonitor) {
	if s.clips == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	errs := make([]error, len(moments))

	var wg sync.WaitGroup
	for i := range moments {
		m := &moments[i]
		if m.Metadata.VideoPath == "" {
			continue
		}
		wg.Add(1)
		s.submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			cutCtx, cancel := context.WithTimeout(detached, s.clipTimeout)
			defer cancel()
			path, err := s.clips.Cut(cutCtx, m.Metadata.VideoPath, m.StartTime, m.EndTime, m.Id)
			if err != nil {
				errs[i] = err
				return
			}
			m.ClipPath = path
			m.ClipURL = s.clipURLPrefix + m.Id
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			s.degrade(monitor, &DegradedError{Stage: StageClip, Err: err})
			moments[i].ClipPath = ""
			moments[i].ClipURL = ""
		}
	}
}

// submit runs task on the pool, or inline when the pool cannot take it.
func (s *Searcher) submit(task func()) {
	if err := s.pool.Submit(task); err != nil {
		s.logger.Debug("worker pool unavailable, running inline", "err", err)
		task()
	}
}

func (s *Searcher) degrade(monitor SearchMonitor, err *DegradedError) {
	s.logger.Warn("search degraded", "stage", err.Stage, "err", err.Err)
	monitor.Degraded(err)
}
