package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneblend/internal/services"
	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/desertthunder/tuneblend/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	palette     *ui.Palette
	lookupEnv   func(string) (string, bool)
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config means each command loads the file named by --config.
type RunnerOpts struct {
	Config      *shared.Config
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Palette     *ui.Palette
	LookupEnv   func(string) (string, bool)
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Palette == nil {
		opts.Palette = ui.Default
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		palette:     opts.Palette,
		lookupEnv:   opts.LookupEnv,
		openBrowser: opts.OpenBrowser,
	}
}

// App builds the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:    "tuneblend",
		Usage:   "Spotify proxy for search, login and three-song playlists",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (.toml, .yaml)",
				Value:   "config.toml",
				Sources: cli.EnvVars("TUNEBLEND_CONFIG"),
			},
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, tokenCommand, searchCommand, loginCommand, jobsCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the configuration for a command: the injected config or the --config
// file (defaults when missing), then environment overrides.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	var config *shared.Config
	switch {
	case r.config != nil:
		c := *r.config
		config = &c
	default:
		path := cmd.String("config")
		if _, err := os.Stat(path); err == nil {
			if config, err = shared.LoadConfig(path); err != nil {
				return nil, err
			}
			r.logger.Debug("loaded config", "path", path)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
			config = shared.DefaultConfig()
		}
	}

	if err := config.ApplyEnv(r.lookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := shared.ConfigureLogger(r.logger, config.Log.Level, config.Log.Format); err != nil {
		return nil, err
	}
	return config, nil
}

// client returns the injected HTTP client or one bounded by upstream.timeout_seconds.
func (r *Runner) client(config *shared.Config) *http.Client {
	if r.httpClient != nil {
		return r.httpClient
	}
	return &http.Client{Timeout: time.Duration(config.Upstream.TimeoutSeconds) * time.Second}
}

// spotifyClient builds a client and requires credentials.
func (r *Runner) spotifyClient(config *shared.Config) (*services.SpotifyClient, error) {
	return services.NewSpotifyClient(r.spotifyOptions(config))
}

func (r *Runner) spotifyOptions(config *shared.Config) services.SpotifyOptions {
	spotify := config.Credentials.Spotify
	return services.SpotifyOptions{
		ClientID:            spotify.ClientID,
		ClientSecret:        spotify.ClientSecret,
		RedirectURI:         spotify.RedirectURI,
		RefreshClientID:     spotify.Refresh.ClientID,
		RefreshClientSecret: spotify.Refresh.ClientSecret,
		AccountsURL:         config.Upstream.AccountsURL,
		APIURL:              config.Upstream.APIURL,
		HTTPClient:          r.client(config),
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}

// run executes the root command, used by main and tests.
func (r *Runner) run(ctx context.Context, args ...string) error {
	return r.App().Run(ctx, append([]string{"tuneblend"}, args...))
}
