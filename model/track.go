package model

import "time"

// Track processing status values.
const (
	TrackStatusProcessing = "processing"
	TrackStatusCompleted  = "completed"
	TrackStatusFailed     = "failed"
)

// Track represents an uploaded audio track.
type Track struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Genre        string    `json:"genre,omitempty"`
	M3U8URL      string    `json:"m3u8Url"`      // retrieval URL of the uploaded manifest
	Duration     float64   `json:"duration"`     // measured source duration in seconds
	SegmentCount int       `json:"segmentCount"` // number of uploaded segments
	Status       string    `json:"status"`       // processing, completed, failed
	State        int8      `json:"state"`        // 0=soft deleted, 1=normal
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
