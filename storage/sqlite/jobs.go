// Package sqlite records the indexing status of videos in a SQLite
// database. The search core only ever writes to it; reads exist for the CLI.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/poiesic/vantage/core"
	"github.com/poiesic/vantage/storage"
)

//go:embed schema.sql
var schemaSQL string

// Job is the persisted status of one video's indexing job.
type Job struct {
	VideoID   string
	OwnerID   string
	Status    core.JobStatus
	Error     string
	UpdatedAt time.Time
}

// JobStore persists job status rows.
type JobStore struct {
	db *sql.DB
}

var _ storage.JobStatusWriter = (*JobStore)(nil)

// OpenJobStore opens (creating if needed) the database at path and applies the schema.
func OpenJobStore(path string) (*JobStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &JobStore{db: db}, nil
}

// Close closes the database.
func (s *JobStore) Close() error {
	return s.db.Close()
}

// UpdateStatus upserts the status of videoID. message is stored for failed
// jobs and cleared otherwise.
func (s *JobStore) UpdateStatus(ctx context.Context, videoID, ownerID string, status core.JobStatus, message string) error {
	if videoID == "" {
		return core.ErrEmptyVideoID
	}
	switch status {
	case core.JobProcessing, core.JobCompleted, core.JobFailed:
	default:
		return fmt.Errorf("unknown job status %q", status)
	}
	if status != core.JobFailed {
		message = ""
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO video_jobs (video_id, owner_id, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		videoID, ownerID, string(status), message, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// Get returns the job of videoID or storage.ErrNotFound.
func (s *JobStore) Get(ctx context.Context, videoID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT video_id, owner_id, status, error, updated_at FROM video_jobs WHERE video_id = ?`, videoID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns the jobs of ownerID ordered by video id. An empty ownerID lists every job.
func (s *JobStore) List(ctx context.Context, ownerID string) ([]*Job, error) {
	query := `SELECT video_id, owner_id, status, error, updated_at FROM video_jobs`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY video_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes the job row of videoID. Missing rows are ignored.
func (s *JobStore) Delete(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM video_jobs WHERE video_id = ?`, videoID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*Job, error) {
	var (
		job     Job
		status  string
		updated int64
	)
	if err := sc.Scan(&job.VideoID, &job.OwnerID, &status, &job.Error, &updated); err != nil {
		return nil, err
	}
	job.Status = core.JobStatus(status)
	job.UpdatedAt = time.UnixMilli(updated).UTC()
	return &job, nil
}
