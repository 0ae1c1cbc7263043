package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()
		if config.Server.Port != 3001 {
			t.Errorf("expected server port 3001, got %d", config.Server.Port)
		}
		if config.Server.FrontendURL != "http://localhost:3000" {
			t.Errorf("expected frontend URL http://localhost:3000, got %s", config.Server.FrontendURL)
		}
		if config.Credentials.Spotify.Refresh.ClientID != "your-client-id" {
			t.Errorf("expected refresh client_id your-client-id, got %s", config.Credentials.Spotify.Refresh.ClientID)
		}
		if config.Playlist.Name != "My Tuneblend Playlist" {
			t.Errorf("expected default playlist name, got %s", config.Playlist.Name)
		}
		if config.Playlist.Public {
			t.Error("expected playlists to default to private")
		}
		if config.OAuth.StateMode != StateModeNone {
			t.Errorf("expected state mode none, got %s", config.OAuth.StateMode)
		}
		if config.Upstream.APIURL != "https://api.spotify.com/v1" {
			t.Errorf("unexpected api url %s", config.Upstream.APIURL)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Server.Port != DefaultConfig().Server.Port {
			t.Errorf("created config port doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig TOML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")
		testConfig := `[server]
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080/callback"

[playlist]
compensate = true
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if !config.Playlist.Compensate {
			t.Error("expected compensate to be enabled")
		}
		if config.Playlist.Name != "My Tuneblend Playlist" {
			t.Errorf("expected unset playlist name to keep default, got %q", config.Playlist.Name)
		}
	})

	t.Run("LoadConfig YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")
		testConfig := `server:
  port: 9090
  cors_origins:
    - http://localhost:3000
oauth:
  state_mode: cookie
  state_secret: s3cret
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 9090 {
			t.Errorf("expected server port 9090, got %d", config.Server.Port)
		}
		if len(config.Server.CORSOrigins) != 1 || config.Server.CORSOrigins[0] != "http://localhost:3000" {
			t.Errorf("unexpected cors origins %v", config.Server.CORSOrigins)
		}
		if config.OAuth.StateMode != StateModeCookie {
			t.Errorf("expected cookie state mode, got %s", config.OAuth.StateMode)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("LoadConfig malformed", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := func(values map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}
	}

	t.Run("overrides", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{
			"SPOTIFY_CLIENT_ID":     "env_id",
			"SPOTIFY_CLIENT_SECRET": "env_secret",
			"SPOTIFY_REDIRECT_URI":  "http://example.com/callback",
			"PORT":                  "4000",
			"DATABASE_PATH":         "/tmp/jobs.db",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("expected env client secret, got %s", config.Credentials.Spotify.ClientSecret)
		}
		if config.Credentials.Spotify.RedirectURI != "http://example.com/callback" {
			t.Errorf("unexpected redirect uri %s", config.Credentials.Spotify.RedirectURI)
		}
		if config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", config.Server.Port)
		}
		if config.Database.Path != "/tmp/jobs.db" {
			t.Errorf("unexpected database path %s", config.Database.Path)
		}
		if config.Addr() != ":4000" {
			t.Errorf("expected addr :4000, got %s", config.Addr())
		}
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ApplyEnv(env(map[string]string{"PORT": "", "FRONTEND_URL": ""})); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}
		if config.Server.Port != 3001 {
			t.Errorf("expected default port, got %d", config.Server.Port)
		}
		if config.Server.FrontendURL != "http://localhost:3000" {
			t.Errorf("expected default frontend url, got %s", config.Server.FrontendURL)
		}
	})

	t.Run("bad port", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{"PORT": "eighty"}))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tc := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "cookie without secret", mutate: func(c *Config) { c.OAuth.StateMode = StateModeCookie }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.OAuth.StateMode = StateModeRedis }, wantErr: true},
		{name: "redis with addr", mutate: func(c *Config) {
			c.OAuth.StateMode = StateModeRedis
			c.OAuth.RedisAddr = "localhost:6379"
		}},
		{name: "unknown mode", mutate: func(c *Config) { c.OAuth.StateMode = "session" }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.Server.RateLimit = -1 }, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
