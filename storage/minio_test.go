package storage

import (
	"context"
	"errors"
	"testing"
)

func TestNewClientMissingConfig(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		bucket   string
	}{
		{"no endpoint", "", "sacraltrack"},
		{"no bucket", "127.0.0.1:9000", ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.endpoint, "http://localhost", "ak", "sk", tt.bucket, "us-east-1", false)
			if !errors.Is(err, ErrMissingConfig) {
				t.Errorf("err = %v, want ErrMissingConfig", err)
			}
		})
	}
}

func TestFileURLTemplating(t *testing.T) {
	c, err := NewClient("127.0.0.1:9000", "https://cdn.sacraltrack.com", "ak", "sk", "tracks", "us-east-1", false)
	if err != nil {
		t.Fatal(err)
	}

	got := c.FileURL("abc-123")
	want := "https://cdn.sacraltrack.com/storage/buckets/tracks/files/abc-123/view"
	if got != want {
		t.Errorf("FileURL = %q, want %q", got, want)
	}
}

func TestUploadSegmentNilClientFailsFast(t *testing.T) {
	// A zero-value client must refuse before attempting network I/O.
	var c *Client
	_, err := c.UploadSegment(context.Background(), "t1", 0, []byte("data"))
	if !errors.Is(err, ErrMissingConfig) {
		t.Errorf("err = %v, want ErrMissingConfig", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.size); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
