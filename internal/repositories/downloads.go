package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/shared"
)

// DownloadRepository records audio files written by the download engine.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Record inserts download with a generated ID and sequence.
func (r *DownloadRepository) Record(download *models.Download) error {
	if err := download.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	download.SetID(id)
	download.SetSequence(sequence)

	query := `
		INSERT INTO downloads (id, sequence, owner_id, audio_id, artist, title, path, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		download.OwnerID,
		download.AudioID,
		download.Artist,
		download.Title,
		download.Path,
		download.Bytes,
		download.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	return nil
}

// Exists reports whether the audio was downloaded before.
func (r *DownloadRepository) Exists(ownerID, audioID int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM downloads WHERE owner_id = ? AND audio_id = ?)",
		ownerID, audioID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check download: %w", err)
	}
	return exists, nil
}

// List returns the most recent downloads, newest first. A limit <= 0 returns all of them.
func (r *DownloadRepository) List(limit int) ([]*models.Download, error) {
	query := `
		SELECT id, sequence, owner_id, audio_id, artist, title, path, bytes, created_at
		FROM downloads
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.Download
	for rows.Next() {
		download, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, download)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return downloads, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Download]
func (r *DownloadRepository) scanRow(rows *sql.Rows) (*models.Download, error) {
	var (
		id        string
		sequence  int
		createdAt time.Time
		audio     models.Audio
		path      string
		size      int64
	)

	err := rows.Scan(&id, &sequence, &audio.OwnerID, &audio.ID, &audio.Artist, &audio.Title, &path, &size, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	download := models.NewDownload(audio, path, size)
	download.SetID(id)
	download.SetSequence(sequence)
	download.SetCreatedAt(createdAt)
	return download, nil
}
