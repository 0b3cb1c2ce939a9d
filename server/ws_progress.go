package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"sacraltrack/logger"
	"sacraltrack/model"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressMessage is one websocket frame pushed to the client.
type progressMessage struct {
	TrackID  string  `json:"trackId"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
}

// ProgressWebSocketHandler pushes upload progress for a track until it
// reaches a terminal status or the client disconnects.
//
// Path: /ws/progress/{track_id}
func (h *APIHandler) ProgressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["track_id"]
	trackID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	for {
		track, err := h.trackRepo.GetTrackByID(trackID)
		if err != nil || track == nil {
			logger.Warn("track lookup failed during progress push",
				logger.String("trackId", idStr),
				logger.ErrorField(err))
			return
		}

		msg := progressMessage{
			TrackID:  idStr,
			Progress: h.progress.Get(idStr),
			Status:   track.Status,
		}
		if track.Status == model.TrackStatusCompleted {
			msg.Progress = 100
		}

		if err := conn.WriteJSON(msg); err != nil {
			return
		}

		if track.Status == model.TrackStatusCompleted || track.Status == model.TrackStatusFailed {
			return
		}

		// Block until ingestion finishes or the push interval elapses,
		// whichever comes first.
		if h.tracker.Wait(idStr, 500*time.Millisecond) {
			// Ingestion released its lock; the status row may still be
			// in flight, so pause before re-reading.
			time.Sleep(200 * time.Millisecond)
		}
	}
}
