package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneblend/internal/models"
	"github.com/desertthunder/tuneblend/internal/services"
	"github.com/desertthunder/tuneblend/internal/shared"
)

// SongCount is the exact number of tracks a playlist is built from.
const SongCount = 3

const (
	DefaultPlaylistName        = "My Tuneblend Playlist"
	DefaultPlaylistDescription = "A playlist created with Tuneblend"
)

// PlaylistAPI is the upstream surface used by [PlaylistBuilder]. [*services.SpotifyClient] implements it.
type PlaylistAPI interface {
	CreatePlaylist(ctx context.Context, token string, p services.NewPlaylist) (string, error)
	AddTracks(ctx context.Context, token, playlistID string, uris []string) error
	UnfollowPlaylist(ctx context.Context, token, playlistID string) error
}

// JobStore persists playlist jobs.
type JobStore interface {
	Create(ctx context.Context, job *models.PlaylistJob) error
	Update(ctx context.Context, job *models.PlaylistJob) error
}

// BuildOptions sets the playlist metadata and failure handling.
type BuildOptions struct {
	Name        string
	Description string
	Public      bool
	Compensate  bool // unfollow the created playlist when adding tracks fails
}

// DefaultBuildOptions returns the fixed private playlist metadata.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Name: DefaultPlaylistName, Description: DefaultPlaylistDescription}
}

// PlaylistBuilder creates a playlist and fills it with the selected tracks.
type PlaylistBuilder struct {
	api    PlaylistAPI
	jobs   JobStore
	opts   BuildOptions
	logger *log.Logger

	OnProgress func(ProgressUpdate)
}

// NewPlaylistBuilder creates a builder. jobs may be nil.
func NewPlaylistBuilder(api PlaylistAPI, jobs JobStore, opts BuildOptions, logger *log.Logger) *PlaylistBuilder {
	if opts.Name == "" {
		opts.Name = DefaultPlaylistName
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PlaylistBuilder{api: api, jobs: jobs, opts: opts, logger: logger}
}

// ValidateSelection checks the request shape before any upstream call.
func ValidateSelection(accessToken string, songs []string) error {
	if len(songs) != SongCount {
		return fmt.Errorf("%w: expected %d songs, got %d", shared.ErrInvalidInput, SongCount, len(songs))
	}
	if accessToken == "" {
		return fmt.Errorf("%w: missing access token", shared.ErrInvalidInput)
	}
	return nil
}

// Build runs create then add-tracks. The returned job is non-nil whenever validation passed.
func (b *PlaylistBuilder) Build(ctx context.Context, accessToken string, songs []string) (*models.PlaylistJob, error) {
	if err := ValidateSelection(accessToken, songs); err != nil {
		return nil, err
	}

	job := models.NewPlaylistJob(b.opts.Name, b.opts.Description, b.opts.Public, songs)
	b.save(ctx, job, true)

	b.progress(createPlaylistUpdate(job.ID, job.Name))
	playlistID, err := b.api.CreatePlaylist(ctx, accessToken, services.NewPlaylist{
		Name:        job.Name,
		Description: job.Description,
		Public:      job.Public,
	})
	if err != nil {
		job.MarkFailed(err)
		b.save(ctx, job, false)
		return job, fmt.Errorf("failed to create playlist: %w", err)
	}

	job.MarkCreated(playlistID)
	b.save(ctx, job, false)

	b.progress(addTracksUpdate(job.ID, playlistID, len(songs)))
	if err := b.api.AddTracks(ctx, accessToken, playlistID, job.TrackURIs); err != nil {
		addErr := fmt.Errorf("failed to add tracks to playlist %s: %w", playlistID, err)
		if !b.opts.Compensate {
			job.MarkFailed(addErr)
			b.save(ctx, job, false)
			return job, addErr
		}
		return job, b.compensate(ctx, accessToken, job, addErr)
	}

	job.MarkPopulated()
	b.save(ctx, job, false)
	b.progress(doneUpdate(job.ID, playlistID))
	return job, nil
}

// compensate unfollows the created playlist. It runs even if ctx was cancelled.
func (b *PlaylistBuilder) compensate(ctx context.Context, accessToken string, job *models.PlaylistJob, cause error) error {
	ctx = context.WithoutCancel(ctx)
	b.progress(compensateUpdate(job.ID, job.PlaylistID))

	if err := b.api.UnfollowPlaylist(ctx, accessToken, job.PlaylistID); err != nil {
		joined := errors.Join(cause, fmt.Errorf("failed to remove playlist %s: %w", job.PlaylistID, err))
		job.MarkFailed(joined)
		b.save(ctx, job, false)
		b.logger.Error("compensation failed, playlist left behind", "job", job.ID, "playlist", job.PlaylistID, "error", err)
		return joined
	}

	job.MarkCompensated(cause)
	b.save(ctx, job, false)
	b.logger.Warn("playlist removed after failed track add", "job", job.ID, "playlist", job.PlaylistID)
	return cause
}

func (b *PlaylistBuilder) save(ctx context.Context, job *models.PlaylistJob, create bool) {
	if b.jobs == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	var err error
	if create {
		err = b.jobs.Create(ctx, job)
	} else {
		err = b.jobs.Update(ctx, job)
	}
	if err != nil {
		b.logger.Warn("failed to record playlist job", "job", job.ID, "status", job.Status, "error", err)
	}
}

func (b *PlaylistBuilder) progress(update ProgressUpdate) {
	if b.OnProgress != nil {
		b.OnProgress(update)
	}
}
