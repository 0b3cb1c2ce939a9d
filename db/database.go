package db

import (
	"database/sql"
	"fmt"

	"sacraltrack/config"
	"sacraltrack/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to the database")
	return nil
}

// InitDB creates the tracks schema if it does not exist. The users table is
// migrated separately through GORM.
func InitDB() error {
	if err := createTracksTable(); err != nil {
		return err
	}
	logger.Info("database initialization completed")
	return nil
}

func createTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255),
		genre VARCHAR(100),
		m3u8_url VARCHAR(1024),
		duration DOUBLE DEFAULT 0,
		segment_count INT DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'processing',
		state TINYINT NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_tracks_user (user_id)
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}
