package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// State validation modes for the OAuth login flow.
const (
	StateModeNone   = "none"
	StateModeCookie = "cookie"
	StateModeRedis  = "redis"
)

// Config represents the application configuration loaded from a TOML or YAML file.
type Config struct {
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Credentials CredentialsConfig `toml:"credentials" yaml:"credentials"`
	Upstream    UpstreamConfig    `toml:"upstream" yaml:"upstream"`
	OAuth       OAuthConfig       `toml:"oauth" yaml:"oauth"`
	Playlist    PlaylistConfig    `toml:"playlist" yaml:"playlist"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                   string   `toml:"host" yaml:"host"`
	Port                   int      `toml:"port" yaml:"port"`
	FrontendURL            string   `toml:"frontend_url" yaml:"frontend_url"`
	CORSOrigins            []string `toml:"cors_origins" yaml:"cors_origins"`
	RateLimit              float64  `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst              int      `toml:"rate_burst" yaml:"rate_burst"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify" yaml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// Refresh holds the pair used by the refresh-token endpoint, which is configured separately.
type SpotifyConfig struct {
	ClientID     string        `toml:"client_id" yaml:"client_id"`
	ClientSecret string        `toml:"client_secret" yaml:"client_secret"`
	RedirectURI  string        `toml:"redirect_uri" yaml:"redirect_uri"`
	Refresh      ClientKeyPair `toml:"refresh" yaml:"refresh"`
}

// ClientKeyPair is an OAuth client id and secret.
type ClientKeyPair struct {
	ClientID     string `toml:"client_id" yaml:"client_id"`
	ClientSecret string `toml:"client_secret" yaml:"client_secret"`
}

// UpstreamConfig points at the Spotify accounts service and Web API.
type UpstreamConfig struct {
	AccountsURL    string `toml:"accounts_url" yaml:"accounts_url"`
	APIURL         string `toml:"api_url" yaml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	AutoRefresh    bool   `toml:"auto_refresh" yaml:"auto_refresh"`
}

// OAuthConfig controls how the login state parameter is tracked.
type OAuthConfig struct {
	StateMode       string `toml:"state_mode" yaml:"state_mode"`
	StateSecret     string `toml:"state_secret" yaml:"state_secret"`
	StateTTLSeconds int    `toml:"state_ttl_seconds" yaml:"state_ttl_seconds"`
	RedisAddr       string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword   string `toml:"redis_password" yaml:"redis_password"`
	RedisDB         int    `toml:"redis_db" yaml:"redis_db"`
}

// PlaylistConfig describes playlists created by the service.
type PlaylistConfig struct {
	Name        string `toml:"name" yaml:"name"`
	Description string `toml:"description" yaml:"description"`
	Public      bool   `toml:"public" yaml:"public"`
	Compensate  bool   `toml:"compensate" yaml:"compensate"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// LoadConfig reads a configuration file, decoding YAML for .yaml/.yml extensions and TOML otherwise.
//
// Values missing from the file fall back to [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables resolved through lookup,
// usually [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret)
	str("SPOTIFY_REDIRECT_URI", &c.Credentials.Spotify.RedirectURI)
	str("SPOTIFY_REFRESH_CLIENT_ID", &c.Credentials.Spotify.Refresh.ClientID)
	str("SPOTIFY_REFRESH_CLIENT_SECRET", &c.Credentials.Spotify.Refresh.ClientSecret)
	str("FRONTEND_URL", &c.Server.FrontendURL)
	str("TUNEBLEND_STATE_SECRET", &c.OAuth.StateSecret)
	str("REDIS_ADDR", &c.OAuth.RedisAddr)
	str("DATABASE_PATH", &c.Database.Path)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q is not a number", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate reports configuration that cannot produce a working server.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}

	switch c.OAuth.StateMode {
	case "", StateModeNone:
	case StateModeCookie:
		if c.OAuth.StateSecret == "" {
			return fmt.Errorf("%w: oauth.state_secret is required for cookie state mode", ErrInvalidConfig)
		}
	case StateModeRedis:
		if c.OAuth.RedisAddr == "" {
			return fmt.Errorf("%w: oauth.redis_addr is required for redis state mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown oauth.state_mode %q", ErrInvalidConfig, c.OAuth.StateMode)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
