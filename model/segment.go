package model

// SegmentDuration is the nominal length in seconds declared for every
// segment in a manifest. It is a fixed constant, not measured from the
// audio content, so the final (possibly shorter) segment drifts.
const SegmentDuration = 10

// Segment is a stored slice of a track's audio. Immutable once created;
// manifests reference segments, never mutate them.
type Segment struct {
	ID       string  `json:"id"`       // opaque, assigned by the storage backend
	URL      string  `json:"url"`      // retrieval URL
	Index    int     `json:"index"`    // position within the track
	Duration float64 `json:"duration"` // nominal, always SegmentDuration
}

// UploadProgress is the persisted progress record for a track upload.
type UploadProgress struct {
	Progress  float64 `json:"progress"`  // percent complete, 0-100
	Timestamp int64   `json:"timestamp"` // unix milliseconds at save time
}
