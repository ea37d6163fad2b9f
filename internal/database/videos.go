package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yrk1n/video-platform/internal/metrics"
)

// ErrNotFound is returned when no video matches the lookup.
var ErrNotFound = errors.New("video not found")

const videoColumns = `id, file_name, identifier, name, genre, file_path, size, job_id, uploaded_at`

// UpsertVideo inserts v or replaces the row with the same file name. A
// zero UploadedAt is set to the current time.
func (d *Database) UpsertVideo(ctx context.Context, v *Video) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_video", start, err) }()

	if v.UploadedAt.IsZero() {
		v.UploadedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO videos (file_name, identifier, name, genre, file_path, size, job_id, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			identifier = excluded.identifier,
			name = excluded.name,
			genre = excluded.genre,
			file_path = excluded.file_path,
			size = excluded.size,
			job_id = excluded.job_id,
			uploaded_at = excluded.uploaded_at
	`, v.FileName, v.Identifier, v.Name, v.Genre, v.FilePath, v.Size, v.JobID, v.UploadedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.FileName, err)
	}

	return d.db.QueryRowContext(ctx, `SELECT id FROM videos WHERE file_name = ?`, v.FileName).Scan(&v.ID)
}

// GetVideo returns the video stored under fileName.
func (d *Database) GetVideo(ctx context.Context, fileName string) (*Video, error) {
	return d.getVideo(ctx, `file_name = ?`, fileName)
}

// GetVideoByIdentifier returns the most recently uploaded video whose file
// name maps to identifier.
func (d *Database) GetVideoByIdentifier(ctx context.Context, identifier string) (*Video, error) {
	return d.getVideo(ctx, `identifier = ? ORDER BY uploaded_at DESC, id DESC LIMIT 1`, identifier)
}

func (d *Database) getVideo(ctx context.Context, where string, arg string) (v *Video, err error) {
	start := time.Now()
	defer func() {
		qerr := err
		if errors.Is(err, ErrNotFound) {
			qerr = nil
		}
		recordQuery("get_video", start, qerr)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE `+where, arg)
	v, err = scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVideos returns all videos, newest upload first.
func (d *Database) ListVideos(ctx context.Context) (videos []Video, err error) {
	start := time.Now()
	defer func() { recordQuery("list_videos", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos = []Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// DeleteVideo removes the row for fileName. It returns ErrNotFound when no
// row existed.
func (d *Database) DeleteVideo(ctx context.Context, fileName string) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `DELETE FROM videos WHERE file_name = ?`, fileName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CalculateStats counts stored videos and their total size.
func (d *Database) CalculateStats(ctx context.Context) (stats metrics.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("calculate_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM videos`).
		Scan(&stats.TotalVideos, &stats.TotalBytes)
	return stats, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var uploaded int64
	if err := row.Scan(&v.ID, &v.FileName, &v.Identifier, &v.Name, &v.Genre, &v.FilePath, &v.Size, &v.JobID, &uploaded); err != nil {
		return nil, err
	}
	v.UploadedAt = time.Unix(uploaded, 0)
	return &v, nil
}
