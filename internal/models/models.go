package models

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tuneblend/internal/shared"
)

// Model defines the base interface for all persistent models.
type Model interface {
	GetID() string        // GetID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error
	Get(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, model T) error
	List(ctx context.Context, limit int) ([]T, error)
}

// JobStatus is the lifecycle state of a [PlaylistJob].
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobCreated     JobStatus = "created"     // playlist exists upstream, tracks not yet added
	JobPopulated   JobStatus = "populated"   // both upstream calls succeeded
	JobFailed      JobStatus = "failed"      // a step failed; a created playlist may be orphaned
	JobCompensated JobStatus = "compensated" // tracks failed and the created playlist was removed
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobCreated, JobPopulated, JobFailed, JobCompensated:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobPopulated || s == JobFailed || s == JobCompensated
}

// PlaylistJob tracks a two-step playlist creation (create, then add tracks).
type PlaylistJob struct {
	ID          string    `json:"id"`
	Sequence    int       `json:"sequence"`
	PlaylistID  string    `json:"playlist_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Public      bool      `json:"public"`
	TrackURIs   []string  `json:"track_uris"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	Created     time.Time `json:"created_at"`
	Updated     time.Time `json:"updated_at"`
}

// NewPlaylistJob creates a pending job with a fresh id.
func NewPlaylistJob(name, description string, public bool, uris []string) *PlaylistJob {
	now := time.Now().UTC()
	return &PlaylistJob{
		ID:          shared.GenerateID(),
		Name:        name,
		Description: description,
		Public:      public,
		TrackURIs:   append([]string(nil), uris...),
		Status:      JobPending,
		Created:     now,
		Updated:     now,
	}
}

func (j *PlaylistJob) GetID() string        { return j.ID }
func (j *PlaylistJob) CreatedAt() time.Time { return j.Created }
func (j *PlaylistJob) UpdatedAt() time.Time { return j.Updated }

// Validate checks required fields and the status value.
func (j *PlaylistJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrInvalidInput)
	}
	if j.Name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, j.Status)
	}
	if j.Status != JobPending && j.Status != JobFailed && j.PlaylistID == "" {
		return fmt.Errorf("%w: status %s requires a playlist id", shared.ErrInvalidInput, j.Status)
	}
	return nil
}

// MarkCreated records the upstream playlist id.
func (j *PlaylistJob) MarkCreated(playlistID string) {
	j.PlaylistID = playlistID
	j.transition(JobCreated, "")
}

// MarkPopulated marks both steps as done.
func (j *PlaylistJob) MarkPopulated() { j.transition(JobPopulated, "") }

// MarkFailed records err against the job.
func (j *PlaylistJob) MarkFailed(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	j.transition(JobFailed, msg)
}

// MarkCompensated records that the created playlist was removed after err.
func (j *PlaylistJob) MarkCompensated(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	j.transition(JobCompensated, msg)
}

func (j *PlaylistJob) transition(s JobStatus, msg string) {
	j.Status = s
	j.Error = msg
	j.Updated = time.Now().UTC()
}
