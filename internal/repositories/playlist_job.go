package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tuneblend/internal/models"
	"github.com/desertthunder/tuneblend/internal/shared"
)

const jobColumns = `id, sequence, playlist_id, name, description, public, track_uris, status, error, created_at, updated_at`

var _ models.Repository[*models.PlaylistJob] = (*PlaylistJobRepository)(nil)

// PlaylistJobRepository implements models.Repository[*models.PlaylistJob].
type PlaylistJobRepository struct {
	db *sql.DB
}

// NewPlaylistJobRepository creates a new PlaylistJobRepository with the given database connection
func NewPlaylistJobRepository(db *sql.DB) *PlaylistJobRepository {
	return &PlaylistJobRepository{db: db}
}

// Create inserts a job and assigns its sequence number.
func (r *PlaylistJobRepository) Create(ctx context.Context, job *models.PlaylistJob) error {
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	uris, err := json.Marshal(job.TrackURIs)
	if err != nil {
		return fmt.Errorf("failed to encode track uris: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlist_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO playlist_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		sequence,
		job.PlaylistID,
		job.Name,
		job.Description,
		job.Public,
		string(uris),
		string(job.Status),
		job.Error,
		job.Created,
		job.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist job: %w", err)
	}

	job.Sequence = sequence
	return nil
}

// Get retrieves a job by ID. Returns [shared.ErrJobNotFound] when absent.
func (r *PlaylistJobRepository) Get(ctx context.Context, id string) (*models.PlaylistJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM playlist_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, err
}

// Update writes the mutable fields of job.
func (r *PlaylistJobRepository) Update(ctx context.Context, job *models.PlaylistJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if job.Updated.IsZero() {
		job.Updated = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE playlist_jobs
		SET playlist_id = ?, status = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, job.PlaylistID, string(job.Status), job.Error, job.Updated, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update playlist job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID)
	}
	return nil
}

// List returns up to limit jobs, newest first. A limit of 0 or less returns all jobs.
func (r *PlaylistJobRepository) List(ctx context.Context, limit int) ([]*models.PlaylistJob, error) {
	query := `SELECT ` + jobColumns + ` FROM playlist_jobs ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.PlaylistJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlist jobs: %w", err)
	}
	return jobs, nil
}

// CountByStatus returns how many jobs are in each status.
func (r *PlaylistJobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM playlist_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count playlist jobs: %w", err)
	}
	defer rows.Close()

	counts := map[models.JobStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.PlaylistJob, error) {
	var (
		job    models.PlaylistJob
		status string
		uris   string
	)
	if err := s.Scan(
		&job.ID,
		&job.Sequence,
		&job.PlaylistID,
		&job.Name,
		&job.Description,
		&job.Public,
		&uris,
		&status,
		&job.Error,
		&job.Created,
		&job.Updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist job: %w", err)
	}

	job.Status = models.JobStatus(status)
	if err := json.Unmarshal([]byte(uris), &job.TrackURIs); err != nil {
		return nil, fmt.Errorf("failed to decode track uris for job %s: %w", job.ID, err)
	}
	return &job, nil
}
