// Spotify accounts service and Web API client
//
// Endpoint reference: https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultAPIURL = "https://api.spotify.com/v1"

	// Placeholder pair sent with refresh-token grants unless configured otherwise.
	DefaultRefreshClientID     = "your-client-id"
	DefaultRefreshClientSecret = "your-client-secret"
)

// PlaylistScopes are requested on every login.
var PlaylistScopes = []string{
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// SpotifyOptions configures a [SpotifyClient].
//
// Empty URLs fall back to the public Spotify endpoints.
type SpotifyOptions struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	RefreshClientID     string
	RefreshClientSecret string
	AccountsURL         string // e.g. https://accounts.spotify.com
	APIURL              string // e.g. https://api.spotify.com/v1
	HTTPClient          *http.Client

	// AllowMissingCredentials builds a client without a client id or secret. Every upstream
	// call made with it then fails at the accounts service.
	AllowMissingCredentials bool
}

// SpotifyClient performs the upstream calls made by the proxy and the CLI.
type SpotifyClient struct {
	oauth         *oauth2.Config
	credentials   *clientcredentials.Config
	refreshID     string
	refreshSecret string
	apiURL        string
	httpClient    *http.Client
}

// Validate reports a missing client id or secret.
func (opts SpotifyOptions) Validate() error {
	if opts.ClientID == "" {
		return fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	return nil
}

// NewSpotifyClient validates opts and builds a client.
func NewSpotifyClient(opts SpotifyOptions) (*SpotifyClient, error) {
	if err := opts.Validate(); err != nil && !opts.AllowMissingCredentials {
		return nil, err
	}

	endpoint := oauth2.Endpoint{
		AuthURL:   spotifyauth.AuthURL,
		TokenURL:  spotifyauth.TokenURL,
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	if opts.AccountsURL != "" {
		base := strings.TrimRight(opts.AccountsURL, "/")
		endpoint.AuthURL = base + "/authorize"
		endpoint.TokenURL = base + "/api/token"
	}

	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	refreshID, refreshSecret := opts.RefreshClientID, opts.RefreshClientSecret
	if refreshID == "" {
		refreshID = DefaultRefreshClientID
	}
	if refreshSecret == "" {
		refreshSecret = DefaultRefreshClientSecret
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &SpotifyClient{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       PlaylistScopes,
			Endpoint:     endpoint,
		},
		credentials: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     endpoint.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		refreshID:     refreshID,
		refreshSecret: refreshSecret,
		apiURL:        apiURL,
		httpClient:    client,
	}, nil
}

// AuthCodeURL builds the authorize URL (response_type, client_id, redirect_uri, scope, state).
func (c *SpotifyClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for user tokens.
func (c *SpotifyClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(c.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, tokenError("exchange", err))
	}
	return token, nil
}

// ClientCredentialsToken fetches an app token for unauthenticated endpoints.
func (c *SpotifyClient) ClientCredentialsToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := c.credentials.Token(c.withClient(ctx))
	if err != nil {
		return nil, tokenError("client credentials", err)
	}
	return token, nil
}

// RefreshToken runs a refresh-token grant and returns the upstream body as is.
//
// The grant is authenticated with the refresh credential pair, not the app credentials.
func (c *SpotifyClient) RefreshToken(ctx context.Context, refreshToken string) (*RawResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.refreshID, c.refreshSecret)

	resp, err := c.send("refresh token", req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return resp, nil
}

// Search runs a track search with bearer token and returns the upstream body as is.
func (c *SpotifyClient) Search(ctx context.Context, token, query string) (*RawResponse, error) {
	params := url.Values{"q": {query}, "type": {"track"}}
	return c.doRequest(ctx, "search", http.MethodGet, "/search?"+params.Encode(), token, nil)
}

// CreatePlaylist creates a playlist for the token's user and returns its id.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, token string, p NewPlaylist) (string, error) {
	resp, err := c.doRequest(ctx, "create playlist", http.MethodPost, "/me/playlists", token, p)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return "", fmt.Errorf("%w: failed to decode playlist: %w", shared.ErrAPIRequest, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: playlist response has no id", shared.ErrAPIRequest)
	}
	return created.ID, nil
}

// AddTracks appends uris to a playlist.
func (c *SpotifyClient) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	body := struct {
		URIs []string `json:"uris"`
	}{uris}
	_, err := c.doRequest(ctx, "add tracks", http.MethodPost, "/playlists/"+url.PathEscape(playlistID)+"/tracks", token, body)
	return err
}

// UnfollowPlaylist removes a playlist from the user's library, which is how Spotify deletes one.
func (c *SpotifyClient) UnfollowPlaylist(ctx context.Context, token, playlistID string) error {
	_, err := c.doRequest(ctx, "unfollow playlist", http.MethodDelete, "/playlists/"+url.PathEscape(playlistID)+"/followers", token, nil)
	return err
}

// SearchTracks performs a typed track search using an app token.
func (c *SpotifyClient) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, 50)

	ctx = c.withClient(ctx)
	client := spotify.New(c.credentials.Client(ctx), spotify.WithBaseURL(c.apiURL+"/"))

	result, err := client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", shared.ErrAPIRequest, err)
	}
	if result.Tracks == nil {
		return []Track{}, nil
	}

	tracks := make([]Track, 0, len(result.Tracks.Tracks))
	for _, t := range result.Tracks.Tracks {
		artists := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			artists = append(artists, a.Name)
		}
		tracks = append(tracks, Track{
			ID:       t.ID.String(),
			Title:    t.Name,
			Artist:   strings.Join(artists, ", "),
			Album:    t.Album.Name,
			URI:      string(t.URI),
			Duration: int(t.Duration) / 1000,
		})
	}
	return tracks, nil
}

// doRequest sends an authenticated Web API request, JSON-encoding body when present.
func (c *SpotifyClient) doRequest(ctx context.Context, op, method, endpoint, token string, body any) (*RawResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(op, req)
}

func (c *SpotifyClient) send(op string, req *http.Request) (*RawResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %w", shared.ErrAPIRequest, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: data}
	}

	return &RawResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// withClient makes the oauth2 packages use the configured HTTP client.
func (c *SpotifyClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &UpstreamError{Op: op, StatusCode: re.Response.StatusCode, Body: re.Body}
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrAPIRequest, op, err)
}
