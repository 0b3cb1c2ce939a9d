package repository

import (
	"database/sql"
	"fmt"
	"time"

	"sacraltrack/model"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	CreateTrack(track *model.Track) (int64, error)
	GetTrackByID(id int64) (*model.Track, error)
	GetAllTracksByUserID(userID int64) ([]*model.Track, error)
	UpdateTrackStatus(trackID int64, status string) error
	UpdateTrackManifest(trackID int64, m3u8URL string, duration float64, segmentCount int) error
	UpdateTrackState(trackID int64, state int8) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

// CreateTrack adds a new track to the database.
func (r *mysqlTrackRepository) CreateTrack(track *model.Track) (int64, error) {
	query := `INSERT INTO tracks (user_id, title, artist, genre, m3u8_url, duration, segment_count, status, state, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateTrack: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.Exec(track.UserID, track.Title, track.Artist, track.Genre, track.M3U8URL,
		track.Duration, track.SegmentCount, track.Status, int8(1), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateTrack: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateTrack: %w", err)
	}
	return id, nil
}

// GetTrackByID retrieves a track by its ID. Returns (nil, nil) when absent.
func (r *mysqlTrackRepository) GetTrackByID(id int64) (*model.Track, error) {
	query := `SELECT id, user_id, title, artist, genre, m3u8_url, duration, segment_count, status, state, created_at, updated_at
	           FROM tracks WHERE id = ? AND state = 1`
	row := r.db.QueryRow(query, id)

	track := &model.Track{}
	err := row.Scan(&track.ID, &track.UserID, &track.Title, &track.Artist, &track.Genre, &track.M3U8URL,
		&track.Duration, &track.SegmentCount, &track.Status, &track.State, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan track by ID %d: %w", id, err)
	}
	return track, nil
}

// GetAllTracksByUserID retrieves all live tracks for a user, newest first.
func (r *mysqlTrackRepository) GetAllTracksByUserID(userID int64) ([]*model.Track, error) {
	query := `SELECT id, user_id, title, artist, genre, m3u8_url, duration, segment_count, status, state, created_at, updated_at
	           FROM tracks WHERE user_id = ? AND state = 1 ORDER BY created_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track := &model.Track{}
		err := rows.Scan(&track.ID, &track.UserID, &track.Title, &track.Artist, &track.Genre, &track.M3U8URL,
			&track.Duration, &track.SegmentCount, &track.Status, &track.State, &track.CreatedAt, &track.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating track rows: %w", err)
	}
	return tracks, nil
}

// UpdateTrackStatus sets the processing status for a track.
func (r *mysqlTrackRepository) UpdateTrackStatus(trackID int64, status string) error {
	query := `UPDATE tracks SET status = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, status, time.Now(), trackID); err != nil {
		return fmt.Errorf("failed to update status for track %d: %w", trackID, err)
	}
	return nil
}

// UpdateTrackManifest records the uploaded manifest URL and measured duration.
func (r *mysqlTrackRepository) UpdateTrackManifest(trackID int64, m3u8URL string, duration float64, segmentCount int) error {
	query := `UPDATE tracks SET m3u8_url = ?, duration = ?, segment_count = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, m3u8URL, duration, segmentCount, time.Now(), trackID); err != nil {
		return fmt.Errorf("failed to update manifest for track %d: %w", trackID, err)
	}
	return nil
}

// UpdateTrackState soft-deletes (state=0) or restores (state=1) a track.
func (r *mysqlTrackRepository) UpdateTrackState(trackID int64, state int8) error {
	query := `UPDATE tracks SET state = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, state, time.Now(), trackID); err != nil {
		return fmt.Errorf("failed to update state for track %d: %w", trackID, err)
	}
	return nil
}
