package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"sacraltrack/logger"
	"sacraltrack/model"
)

// ProgressWindow is how long a saved progress record stays valid.
const ProgressWindow = 24 * time.Hour

// ProgressStore persists upload progress keyed by track ID. It is a
// resumption hint, not a source of truth: writes are best-effort and
// failures are logged, never surfaced to the caller.
type ProgressStore struct {
	rdb *redis.Client
}

// NewProgressStore creates a ProgressStore on the given Redis client.
func NewProgressStore(rdb *redis.Client) *ProgressStore {
	return &ProgressStore{rdb: rdb}
}

// progressKey namespaces the record for one track.
func progressKey(trackID string) string {
	return "upload_progress_" + trackID
}

// progressExpired reports whether a record is older than the validity window.
func progressExpired(rec model.UploadProgress, now time.Time) bool {
	return now.UnixMilli()-rec.Timestamp >= ProgressWindow.Milliseconds()
}

// Save overwrites the progress record for a track with the current timestamp.
func (s *ProgressStore) Save(trackID string, progress float64) {
	rec := model.UploadProgress{
		Progress:  progress,
		Timestamp: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logger.Error("failed to encode progress record",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.rdb.Set(ctx, progressKey(trackID), data, ProgressWindow).Err(); err != nil {
		logger.Error("failed to save progress record",
			logger.String("trackId", trackID),
			logger.Float64("progress", progress),
			logger.ErrorField(err))
		return
	}

	logger.Debug("progress saved",
		logger.String("trackId", trackID),
		logger.Float64("progress", progress))
}

// Get returns the stored progress for a track, or 0 when no record exists
// or the record fell outside the validity window. Stale records are removed
// on read, not proactively swept.
func (s *ProgressStore) Get(trackID string) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := progressKey(trackID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("failed to read progress record",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
		}
		return 0
	}

	var rec model.UploadProgress
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Warn("corrupt progress record, removing",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		s.rdb.Del(ctx, key)
		return 0
	}

	if progressExpired(rec, time.Now()) {
		s.rdb.Del(ctx, key)
		return 0
	}

	return rec.Progress
}
