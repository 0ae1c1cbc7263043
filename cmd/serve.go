package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/tuneblend/internal/repositories"
	"github.com/desertthunder/tuneblend/internal/server"
	"github.com/desertthunder/tuneblend/internal/services"
	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/desertthunder/tuneblend/internal/tasks"
	"github.com/urfave/cli/v3"
)

// service is the assembled proxy: handler plus the resources it owns.
type service struct {
	handler http.Handler
	tokens  *services.TokenProvider
	closers []io.Closer
}

func (s *service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Serve runs the HTTP proxy until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := r.newService(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			r.logger.Warn("failed to release resources", "error", err)
		}
	}()

	if config.Upstream.AutoRefresh {
		go svc.tokens.Run(ctx, time.Minute)
	}

	r.logger.Info("starting tuneblend", "addr", config.Addr(), "state_mode", config.OAuth.StateMode)
	srv := server.NewServer(
		config.Addr(),
		svc.handler,
		time.Duration(config.Server.ShutdownTimeoutSeconds)*time.Second,
		r.logger,
	)
	return srv.ListenAndServe(ctx)
}

// newService wires the upstream client, process token, job ledger, state store and router.
//
// Missing credentials and a failed startup token fetch are logged and the server still starts;
// search answers 500 until a token is available.
func (r *Runner) newService(ctx context.Context, config *shared.Config) (*service, error) {
	opts := r.spotifyOptions(config)
	if err := opts.Validate(); err != nil {
		r.logger.Warn("spotify credentials are incomplete, upstream calls will fail", "error", err)
	}
	opts.AllowMissingCredentials = true

	spotify, err := services.NewSpotifyClient(opts)
	if err != nil {
		return nil, err
	}

	svc := &service{tokens: services.NewTokenProvider(spotify, r.logger.WithPrefix("token"))}
	if err := svc.tokens.Fetch(ctx); err != nil {
		r.logger.Error("failed to obtain startup token", "error", err)
	}

	var jobs tasks.JobStore
	if config.Database.Path != "" {
		db, err := shared.OpenDatabase(config.Database)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, db)
		jobs = repositories.NewPlaylistJobRepository(db)
		r.logger.Info("recording playlist jobs", "path", config.Database.Path)
	}

	builder := tasks.NewPlaylistBuilder(spotify, jobs, tasks.BuildOptions{
		Name:        config.Playlist.Name,
		Description: config.Playlist.Description,
		Public:      config.Playlist.Public,
		Compensate:  config.Playlist.Compensate,
	}, r.logger.WithPrefix("playlist"))
	builder.OnProgress = func(u tasks.ProgressUpdate) {
		r.logger.Debug("playlist progress", "job", u.JobID, "phase", u.Phase, "step", u.Step, "total", u.Total, "message", u.Message)
	}

	states, err := r.stateStore(ctx, config, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Recovery(r.logger),
		server.RequestID(),
		server.Logging(r.logger),
		server.CORS(config.Server.CORSOrigins),
		server.RateLimit(config.Server.RateLimit, config.Server.RateBurst),
	)

	api := server.NewAPI(server.APIOptions{
		Upstream:    spotify,
		Token:       svc.tokens,
		Builder:     builder,
		States:      states,
		FrontendURL: config.Server.FrontendURL,
		Logger:      r.logger,
	})
	api.Register(router)

	svc.handler = router
	return svc, nil
}

func (r *Runner) stateStore(ctx context.Context, config *shared.Config, svc *service) (server.StateStore, error) {
	ttl := time.Duration(config.OAuth.StateTTLSeconds) * time.Second

	switch config.OAuth.StateMode {
	case shared.StateModeCookie:
		secure := strings.HasPrefix(config.Credentials.Spotify.RedirectURI, "https://")
		return server.NewCookieStateStore(config.OAuth.StateSecret, ttl, secure)
	case shared.StateModeRedis:
		client, err := server.NewRedisClient(ctx, config.OAuth.RedisAddr, config.OAuth.RedisPassword, config.OAuth.RedisDB)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, client)
		return server.NewRedisStateStore(client, ttl), nil
	default:
		return server.NoopStateStore{}, nil
	}
}

// openJobs opens the ledger for read-only commands.
func openJobs(config *shared.Config) (*sql.DB, *repositories.PlaylistJobRepository, error) {
	if config.Database.Path == "" {
		return nil, nil, fmt.Errorf("%w: database.path is not set", shared.ErrMissingConfig)
	}
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewPlaylistJobRepository(db), nil
}
