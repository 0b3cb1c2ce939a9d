package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestGenerateSafeTitle(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{"title only", "My Track", "", "My_Track"},
		{"artist and title", "My Track", "Some Artist", "Some_Artist_-_My_Track"},
		{"special characters stripped", "Tr@ck #1!", "", "Trck_1"},
		{"empty title falls back", "", "", "Untitled_Track"},
		{"whitespace title falls back", "   ", "", "Untitled_Track"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateSafeTitle(tt.title, tt.artist); got != tt.want {
				t.Errorf("generateSafeTitle(%q, %q) = %q, want %q", tt.title, tt.artist, got, tt.want)
			}
		})
	}
}

func TestFileIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		id   string
		ok   bool
	}{
		{"manifest url", "http://host/storage/buckets/sacraltrack/files/abc-123/view", "abc-123", true},
		{"no view suffix", "http://host/storage/buckets/sacraltrack/files/abc-123", "", false},
		{"no files marker", "http://host/stream/42/playlist.m3u8", "", false},
		{"empty id", "http://host/storage/buckets/sacraltrack/files//view", "", false},
		{"empty url", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := fileIDFromURL(tt.url)
			if ok != tt.ok || id != tt.id {
				t.Errorf("fileIDFromURL(%q) = (%q, %v), want (%q, %v)", tt.url, id, ok, tt.id, tt.ok)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, 404, "Track not found")

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	if body["error"] != "Track not found" {
		t.Errorf("error = %q, want Track not found", body["error"])
	}
}

func TestContentTypeSniffing(t *testing.T) {
	manifest := []byte("#EXTM3U\n#EXT-X-VERSION:3")
	if got := contentTypeFor(manifest); got != "application/vnd.apple.mpegurl" {
		t.Errorf("manifest content type = %q", got)
	}

	mp3 := []byte{0xFF, 0xFB, 0x90, 0x00}
	if got := contentTypeFor(mp3); got != "audio/mpeg" {
		t.Errorf("segment content type = %q", got)
	}
}
