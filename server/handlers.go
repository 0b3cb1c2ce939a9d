package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"sacraltrack/cache"
	"sacraltrack/config"
	"sacraltrack/core/audio"
	"sacraltrack/repository"
	"sacraltrack/storage"
)

// APIHandler carries the wired dependencies for all HTTP handlers.
type APIHandler struct {
	trackRepo repository.TrackRepository
	userRepo  repository.UserRepository
	validator *audio.Validator
	pipeline  *audio.Pipeline
	tracker   *audio.ProcessingTracker
	store     *storage.Client
	progress  *cache.ProgressStore
	fileCache *cache.FileCache
	cfg       *config.Config
}

// NewAPIHandler creates a new API handler with explicit dependencies.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	userRepo repository.UserRepository,
	validator *audio.Validator,
	pipeline *audio.Pipeline,
	tracker *audio.ProcessingTracker,
	store *storage.Client,
	progress *cache.ProgressStore,
	fileCache *cache.FileCache,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		trackRepo: trackRepo,
		userRepo:  userRepo,
		validator: validator,
		pipeline:  pipeline,
		tracker:   tracker,
		store:     store,
		progress:  progress,
		fileCache: fileCache,
		cfg:       cfg,
	}
}

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// generateSafeTitle sanitizes user-provided metadata for log and display use.
func generateSafeTitle(title, artist string) string {
	if strings.TrimSpace(title) == "" {
		title = "Untitled_Track"
	}

	var parts []string
	if strings.TrimSpace(artist) != "" {
		parts = append(parts, strings.TrimSpace(artist))
	}
	parts = append(parts, strings.TrimSpace(title))

	base := strings.Join(parts, " - ")
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")

	maxLength := 100
	if len(base) > maxLength {
		base = base[:maxLength]
	}
	if base == "" {
		base = "fallback_title"
	}
	return base
}

// fileIDFromURL extracts the opaque file ID from a retrieval URL of the
// form .../storage/buckets/{bucket}/files/{id}/view.
func fileIDFromURL(url string) (string, bool) {
	const marker = "/files/"
	i := strings.LastIndex(url, marker)
	if i < 0 || !strings.HasSuffix(url, "/view") {
		return "", false
	}
	id := strings.TrimSuffix(url[i+len(marker):], "/view")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
