package badger

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vantage/core"
	"github.com/poiesic/vantage/storage"
)

const videoLockStripes = 64

// FrameRepository implements storage.FrameIndex for BadgerDB.
// Records are keyed under their owner, so every read path is scoped by a
// key prefix before any record is decoded.
type FrameRepository struct {
	backend *Backend
	logger  *slog.Logger
	locks   [videoLockStripes]sync.Mutex
}

var _ storage.FrameIndex = (*FrameRepository)(nil)

// NewFrameRepository creates a new FrameRepository.
func NewFrameRepository(backend *Backend) *FrameRepository {
	return &FrameRepository{
		backend: backend,
		logger:  slog.Default().With("component", "frame-index"),
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *FrameRepository) Close() error {
	return nil
}

func (r *FrameRepository) stripe(videoID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(videoID))
	return h.Sum32() % videoLockStripes
}

func (r *FrameRepository) videoLock(videoID string) *sync.Mutex {
	return &r.locks[r.stripe(videoID)]
}

// Add stores a vector with its metadata. An empty id gets a fresh one.
// Writing an existing id replaces the previous record.
func (r *FrameRepository) Add(ctx context.Context, vector []float32, meta core.FrameMetadata, id string) (string, error) {
	if id == "" {
		id = core.NewRecordID()
	}
	record := &core.EmbeddingRecord{
		Id:       id,
		Vector:   slices.Clone(vector),
		Metadata: meta,
	}
	if err := core.ValidateEmbeddingRecord(record); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Replacing a record may move it to another video, whose stripe must be
	// held too so a concurrent DeleteByVideo of that video cannot interleave.
	for {
		oldVideo, err := r.storedVideo(id)
		if err != nil {
			return "", err
		}
		unlock := r.lockVideos(meta.VideoID, oldVideo)
		err = r.put(record, oldVideo)
		unlock()
		if errors.Is(err, errRecordMoved) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
}

// errRecordMoved signals that the record changed video between the
// unlocked lookup and the write; Add retries with the new stripes.
var errRecordMoved = errors.New("record moved during replace")

// storedVideo returns the video a stored record currently belongs to, or ""
// when id is unknown.
func (r *FrameRepository) storedVideo(id string) (string, error) {
	var video string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key, err := readPrimaryKey(tx, makeFrameIDKey(id))
		if err != nil || key == nil {
			return err
		}
		old, err := r.readRecord(tx, key)
		if err != nil || old == nil {
			return err
		}
		video = old.Metadata.VideoID
		return nil
	}, false)
	return video, err
}

// lockVideos locks the stripes of both videos in index order and returns
// the matching unlock.
func (r *FrameRepository) lockVideos(video, other string) func() {
	a := r.videoLock(video)
	if other == "" || other == video {
		a.Lock()
		return a.Unlock
	}
	b := r.videoLock(other)
	if a == b {
		a.Lock()
		return a.Unlock
	}
	if r.stripe(other) < r.stripe(video) {
		a, b = b, a
	}
	a.Lock()
	b.Lock()
	return func() {
		b.Unlock()
		a.Unlock()
	}
}

// put writes record, replacing the version stored under oldVideo.
func (r *FrameRepository) put(record *core.EmbeddingRecord, oldVideo string) error {
	id, meta := record.Id, record.Metadata
	return r.backend.WithTx(func(tx *badger.Txn) error {
		idKey := makeFrameIDKey(id)
		oldKey, err := readPrimaryKey(tx, idKey)
		if err != nil {
			return err
		}
		var old *core.EmbeddingRecord
		if oldKey != nil {
			if old, err = r.readRecord(tx, oldKey); err != nil {
				return err
			}
		}
		current := ""
		if old != nil {
			current = old.Metadata.VideoID
		}
		if current != oldVideo {
			return errRecordMoved
		}
		if old != nil {
			if err := tx.Delete(makeFrameVideoKey(old.Metadata.VideoID, id)); err != nil {
				return err
			}
		}
		if oldKey != nil {
			if err := tx.Delete(oldKey); err != nil {
				return err
			}
		}

		key := makeFrameKey(meta.OwnerID, meta.VideoID, id)
		if err := tx.Set(key, storage.MarshalRecord(record)); err != nil {
			return err
		}
		if err := tx.Set(makeFrameVideoKey(meta.VideoID, id), key); err != nil {
			return err
		}
		if err := tx.Set(idKey, key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Query returns the k records of ownerID nearest to vector, ordered by
// ascending cosine distance. Records of a different dimension are skipped.
func (r *FrameRepository) Query(ctx context.Context, vector []float32, k int, ownerID string) ([]core.VectorMatch, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	if ownerID == "" {
		return nil, core.ErrEmptyOwnerID
	}

	var results []core.VectorMatch
	skipped := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeOwnerPrefix(ownerID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(record.Vector) != len(vector) {
				skipped++
				continue
			}
			results = append(results, core.VectorMatch{
				Id:       record.Id,
				Metadata: record.Metadata,
				Distance: core.CosineDistance(vector, record.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		r.logger.Warn("skipped records with mismatched dimension", "owner", ownerID, "count", skipped, "dimension", len(vector))
	}

	// Stable so equal distances keep key order
	slices.SortStableFunc(results, func(a, b core.VectorMatch) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ScanTags returns up to budget records of ownerID whose detected classes
// contain any of words as a case-insensitive substring. The scan stops as
// soon as the budget is filled, in key order.
func (r *FrameRepository) ScanTags(ctx context.Context, words []string, ownerID string, budget int) ([]core.TagMatch, error) {
	if len(words) == 0 || budget <= 0 {
		return nil, nil
	}
	if ownerID == "" {
		return nil, core.ErrEmptyOwnerID
	}
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}

	var results []core.TagMatch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeOwnerPrefix(ownerID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(results) < budget; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if !record.Metadata.HasClasses() {
				continue
			}
			if conf, ok := matchClasses(&record.Metadata, lowered); ok {
				results = append(results, core.TagMatch{
					Id:         record.Id,
					Metadata:   record.Metadata,
					Confidence: conf,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// matchClasses reports whether any detected class contains one of words and
// returns the highest recorded confidence among the matching classes.
// Classes without a recorded confidence count as 1.0.
func matchClasses(meta *core.FrameMetadata, words []string) (float64, bool) {
	best, matched := 0.0, false
	for _, class := range meta.DetectedClasses {
		lc := strings.ToLower(class)
		hit := false
		for _, w := range words {
			if strings.Contains(lc, w) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		conf := 1.0
		if c, ok := lookupConfidence(meta.ClassConfidences, class); ok {
			conf = c
		}
		if !matched || conf > best {
			best = conf
		}
		matched = true
	}
	return best, matched
}

// lookupConfidence prefers an exact key; among keys differing only by case
// it takes the highest confidence, independent of map order.
func lookupConfidence(confidences map[string]float64, class string) (float64, bool) {
	if c, ok := confidences[class]; ok {
		return c, true
	}
	best, found := 0.0, false
	for k, c := range confidences {
		if strings.EqualFold(k, class) && (!found || c > best) {
			best, found = c, true
		}
	}
	return best, found
}

// DeleteByVideo removes every record of videoID regardless of owner and
// returns how many were removed. Deleting an unknown video is not an error.
func (r *FrameRepository) DeleteByVideo(ctx context.Context, videoID string) (int, error) {
	if videoID == "" {
		return 0, core.ErrEmptyVideoID
	}

	mu := r.videoLock(videoID)
	mu.Lock()
	defer mu.Unlock()

	var keys [][]byte
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeVideoPrefix(videoID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			videoKey := item.KeyCopy(nil)
			primary, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id := string(bytes.TrimPrefix(videoKey, prefix))
			keys = append(keys, videoKey, primary, makeFrameIDKey(id))
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}

	if err := r.backend.DeleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	r.logger.Debug("deleted video records", "video", videoID, "count", count)
	return count, nil
}

// Get retrieves a single record, enforcing that it belongs to ownerID.
func (r *FrameRepository) Get(ctx context.Context, id, ownerID string) (*core.EmbeddingRecord, error) {
	var result *core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		primary, err := readPrimaryKey(tx, makeFrameIDKey(id))
		if err != nil {
			return err
		}
		if primary == nil {
			return storage.ErrNotFound
		}
		result, err = r.readRecord(tx, primary)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if err := core.CheckOwner(&result.Metadata, ownerID); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the number of stored records across all owners.
func (r *FrameRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeAllFramesPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

func (r *FrameRepository) readRecord(tx *badger.Txn, key []byte) (*core.EmbeddingRecord, error) {
	item, err := tx.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record *core.EmbeddingRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}

func readPrimaryKey(tx *badger.Txn, key []byte) ([]byte, error) {
	item, err := tx.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
