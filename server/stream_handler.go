package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"sacraltrack/core/audio"
	"sacraltrack/logger"
	"sacraltrack/model"
)

// ViewFileHandler serves a stored file by its opaque ID. This is the route
// that segment and manifest URLs in playlists point at. Bytes are cached in
// Redis so repeated player requests skip object storage.
//
// Path: /storage/buckets/{bucket}/files/{id}/view
func (h *APIHandler) ViewFileHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if vars["bucket"] != h.store.Bucket() {
		respondError(w, http.StatusNotFound, "Unknown bucket")
		return
	}
	fileID := vars["id"]
	if fileID == "" {
		respondError(w, http.StatusBadRequest, "File ID is required")
		return
	}

	if data, err := h.fileCache.Get(fileID); err == nil && data != nil {
		serveFileBytes(w, fileID, data, contentTypeFor(data))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, contentType, err := h.store.GetFile(ctx, fileID)
	if err != nil {
		logger.Warn("file not found in storage",
			logger.String("id", fileID),
			logger.ErrorField(err))
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		logger.Error("failed to read file from storage",
			logger.String("id", fileID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	h.fileCache.Set(fileID, data)

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(data)
	}
	serveFileBytes(w, fileID, data, contentType)
}

// contentTypeFor sniffs manifest vs segment bytes.
func contentTypeFor(data []byte) string {
	if bytes.HasPrefix(data, []byte("#EXTM3U")) {
		return audio.ManifestMimeType
	}
	return "audio/mpeg"
}

func serveFileBytes(w http.ResponseWriter, fileID string, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// Stored files are immutable; segments and manifests never change in place.
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}

// StreamPlaylistHandler redirects a friendly track URL to the stored
// manifest. Only completed tracks resolve.
//
// Path: /stream/{track_id}/playlist.m3u8
func (h *APIHandler) StreamPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	trackID, err := strconv.ParseInt(mux.Vars(r)["track_id"], 10, 64)
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
	if track.Status != model.TrackStatusCompleted || track.M3U8URL == "" {
		respondError(w, http.StatusConflict, "Track is not ready for streaming")
		return
	}

	http.Redirect(w, r, track.M3U8URL, http.StatusFound)
}
