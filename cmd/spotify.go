package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/desertthunder/tuneblend/internal/ui"
	"github.com/urfave/cli/v3"
)

// Token fetches a client-credentials token and prints it with its expiry.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	spotify, err := r.spotifyClient(config)
	if err != nil {
		return err
	}

	token, err := spotify.ClientCredentialsToken(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"access_token": token.AccessToken,
			"token_type":   token.TokenType,
			"expiry":       token.Expiry,
		}, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", token.AccessToken)
	if !token.Expiry.IsZero() {
		r.writePlain("%s\n", r.palette.Help(fmt.Sprintf("expires %s (in %s)",
			token.Expiry.Format(time.RFC3339), time.Until(token.Expiry).Round(time.Second))))
	}
	return nil
}

// Search runs a typed track search with an app token.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	spotify, err := r.spotifyClient(config)
	if err != nil {
		return err
	}

	r.logger.Debug("searching tracks", "query", query, "limit", cmd.Int("limit"))
	tracks, err := spotify.SearchTracks(ctx, query, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Results for %q", query))
	return r.writePlain("%s", ui.Tracks(r.palette, tracks))
}

// Login opens the local /login endpoint of a running server in the browser.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	host := config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	url := fmt.Sprintf("http://%s:%d/login", host, config.Server.Port)

	r.writePlain("Opening %s\n", url)
	if err := r.openBrowser(url); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("%s\n", r.palette.Warn("Open the URL above to continue."))
	}
	return nil
}
