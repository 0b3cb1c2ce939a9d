package audio

import (
	"sync"
	"time"

	"sacraltrack/logger"
)

// ProcessingStatus tracks one in-flight track ingestion.
type ProcessingStatus struct {
	TrackID      string
	IsProcessing bool
	Error        error
	StartTime    time.Time
	done         chan struct{}
}

// ProcessingTracker guards against concurrent ingestion of the same track.
type ProcessingTracker struct {
	mu     sync.RWMutex
	status map[string]*ProcessingStatus
}

// NewProcessingTracker creates an empty tracker.
func NewProcessingTracker() *ProcessingTracker {
	return &ProcessingTracker{
		status: make(map[string]*ProcessingStatus),
	}
}

// TryLock attempts to take the processing lock for a track. Returns the
// current status and false when the track is already being processed.
func (t *ProcessingTracker) TryLock(trackID string) (*ProcessingStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status, exists := t.status[trackID]; exists && status.IsProcessing {
		logger.Info("track already being processed",
			logger.String("trackId", trackID),
			logger.Duration("processingDuration", time.Since(status.StartTime)))
		return status, false
	}

	status := &ProcessingStatus{
		TrackID:      trackID,
		IsProcessing: true,
		StartTime:    time.Now(),
		done:         make(chan struct{}),
	}
	t.status[trackID] = status

	return status, true
}

// Release drops the processing lock for a track and records its final error.
func (t *ProcessingTracker) Release(trackID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, exists := t.status[trackID]
	if !exists {
		logger.Warn("released a processing lock that does not exist",
			logger.String("trackId", trackID))
		return
	}

	if status.IsProcessing {
		status.IsProcessing = false
		status.Error = err
		close(status.done)
	}
	delete(t.status, trackID)

	logger.Info("released track processing lock",
		logger.String("trackId", trackID),
		logger.Duration("processingTime", time.Since(status.StartTime)),
		logger.Bool("hasError", err != nil))
}

// IsProcessing reports whether a track is currently being ingested.
func (t *ProcessingTracker) IsProcessing(trackID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, exists := t.status[trackID]
	return exists && status.IsProcessing
}

// Wait blocks until the track's ingestion finishes or the timeout elapses.
// Returns true when the ingestion is no longer running.
func (t *ProcessingTracker) Wait(trackID string, timeout time.Duration) bool {
	t.mu.RLock()
	status, exists := t.status[trackID]
	t.mu.RUnlock()

	if !exists || !status.IsProcessing {
		return true
	}

	select {
	case <-status.done:
		return true
	case <-time.After(timeout):
		logger.Warn("timed out waiting for track processing",
			logger.String("trackId", trackID),
			logger.Duration("timeout", timeout))
		return false
	}
}

// CleanupExpired drops statuses older than maxAge. Guards against ingestions
// that never released their lock.
func (t *ProcessingTracker) CleanupExpired(maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for trackID, status := range t.status {
		if now.Sub(status.StartTime) > maxAge {
			if status.IsProcessing {
				status.IsProcessing = false
				close(status.done)
			}
			delete(t.status, trackID)
			cleaned++
			logger.Warn("cleaned up expired processing status",
				logger.String("trackId", trackID),
				logger.Duration("age", now.Sub(status.StartTime)))
		}
	}

	if cleaned > 0 {
		logger.Info("processing status cleanup finished",
			logger.Int("cleanedCount", cleaned),
			logger.Int("remainingCount", len(t.status)))
	}
}
