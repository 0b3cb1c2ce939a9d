package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"sacraltrack/logger"
	"sacraltrack/model"
)

// maxUploadSize bounds multipart request bodies. WAV at 44.1kHz/16-bit stereo
// runs about 10MB per minute, so 12 minutes fits comfortably.
const maxUploadSize = 200 << 20

// uploadSemaphore bounds concurrent upload requests.
var uploadSemaphore = make(chan struct{}, 5)

// UploadTrackHandler accepts a WAV file plus metadata, validates it without
// touching the network, registers the track and starts ingestion in the
// background. Responds 201 as soon as the track record exists; clients follow
// progress via /api/progress or the websocket.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	logger.Info("handling upload request",
		logger.String("remoteAddr", r.RemoteAddr),
		logger.Int64("contentLength", r.ContentLength))

	if r.ContentLength > maxUploadSize {
		respondError(w, http.StatusRequestEntityTooLarge, "Request too large")
		return
	}

	select {
	case uploadSemaphore <- struct{}{}:
		defer func() { <-uploadSemaphore }()
	default:
		respondError(w, http.StatusServiceUnavailable, "Server is busy, please try again later")
		return
	}

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("failed to parse multipart form", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("failed to read uploaded file", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	// Validation happens before any storage or transcode work.
	result := h.validator.Validate(header.Filename, header.Header.Get("Content-Type"), data)
	if !result.Valid {
		logger.Warn("upload rejected by validation",
			logger.String("filename", header.Filename),
			logger.String("reason", result.Err))
		respondError(w, http.StatusBadRequest, result.Err)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	artist := r.FormValue("artist")
	if artist == "" {
		// Default the artist credit to the uploader's account name.
		if username, nameErr := GetUsernameFromContext(r.Context()); nameErr == nil {
			artist = username
		}
	}
	genre := r.FormValue("genre")

	track := &model.Track{
		UserID:   userID,
		Title:    title,
		Artist:   artist,
		Genre:    genre,
		Duration: result.Duration,
		Status:   model.TrackStatusProcessing,
	}
	trackID, err := h.trackRepo.CreateTrack(track)
	if err != nil {
		logger.Error("failed to create track record", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create track")
		return
	}
	track.ID = trackID

	// Spool the validated source to disk so the request body can be released.
	sourcePath, err := spoolUpload(trackID, data)
	if err != nil {
		logger.Error("failed to spool upload",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
		h.trackRepo.UpdateTrackStatus(trackID, model.TrackStatusFailed)
		respondError(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	go h.runPipeline(trackID, sourcePath, result.Duration)

	logger.Info("upload accepted",
		logger.Int64("trackId", trackID),
		logger.String("title", generateSafeTitle(title, artist)),
		logger.Float64("duration", result.Duration))

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"track":    track,
		"progress": 0,
	})
}

// spoolUpload writes the request bytes to a temp file owned by the pipeline.
func spoolUpload(trackID int64, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "upload-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "source.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return path, nil
}

// runPipeline drives ingestion for one track and records the outcome.
func (h *APIHandler) runPipeline(trackID int64, sourcePath string, duration float64) {
	defer os.RemoveAll(filepath.Dir(sourcePath))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	idStr := strconv.FormatInt(trackID, 10)
	result, err := h.pipeline.Process(ctx, idStr, sourcePath, duration)
	if err != nil {
		logger.Error("ingestion failed",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
		if repoErr := h.trackRepo.UpdateTrackStatus(trackID, model.TrackStatusFailed); repoErr != nil {
			logger.Error("failed to mark track failed",
				logger.Int64("trackId", trackID),
				logger.ErrorField(repoErr))
		}
		return
	}

	if err := h.trackRepo.UpdateTrackManifest(trackID, result.ManifestURL, result.Duration, result.SegmentCount); err != nil {
		logger.Error("failed to record manifest",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
	}
	if err := h.trackRepo.UpdateTrackStatus(trackID, model.TrackStatusCompleted); err != nil {
		logger.Error("failed to mark track completed",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
	}

	logger.Info("track ready",
		logger.Int64("trackId", trackID),
		logger.String("manifestUrl", result.ManifestURL),
		logger.Int("segmentCount", result.SegmentCount),
		logger.Duration("totalTime", result.TotalTime))
}

// GetTracksHandler lists the authenticated user's tracks.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tracks, err := h.trackRepo.GetAllTracksByUserID(userID)
	if err != nil {
		logger.Error("failed to list tracks", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to list tracks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// GetTrackHandler returns one track by ID.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil {
		logger.Error("failed to get track", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to get track")
		return
	}
	if track == nil {
		respondError(w, http.StatusNotFound, "Track not found")
		return
	}

	respondJSON(w, http.StatusOK, track)
}

// DeleteTrackHandler soft-deletes a track. Stored segments and manifests are
// left in place; the track simply stops being listed.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil {
		logger.Error("failed to get track", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to get track")
		return
	}
	if track == nil {
		respondError(w, http.StatusNotFound, "Track not found")
		return
	}
	if track.UserID != userID {
		respondError(w, http.StatusForbidden, "Not your track")
		return
	}

	if err := h.trackRepo.UpdateTrackState(trackID, 0); err != nil {
		logger.Error("failed to delete track", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	// Evict the cached manifest bytes; the stored objects themselves stay.
	if fileID, ok := fileIDFromURL(track.M3U8URL); ok {
		h.fileCache.Delete(fileID)
	}

	logger.Info("track deleted", logger.Int64("trackId", trackID))
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetProgressHandler returns the persisted upload progress for a track.
// Missing or stale records read as zero.
func (h *APIHandler) GetProgressHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	if trackID == "" {
		respondError(w, http.StatusBadRequest, "Track ID is required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trackId":    trackID,
		"progress":   h.progress.Get(trackID),
		"processing": h.tracker.IsProcessing(trackID),
	})
}
