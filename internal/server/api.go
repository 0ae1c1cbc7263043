package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneblend/internal/models"
	"github.com/desertthunder/tuneblend/internal/services"
	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/desertthunder/tuneblend/internal/tasks"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 100 << 10

// Upstream is the Spotify surface used by the handlers. [*services.SpotifyClient] implements it.
type Upstream interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.RawResponse, error)
	Search(ctx context.Context, token, query string) (*services.RawResponse, error)
}

// ProcessToken yields the app token used for search. [*services.TokenProvider] implements it.
type ProcessToken interface {
	AccessToken() string
}

// PlaylistBuilder runs the create-playlist flow. [*tasks.PlaylistBuilder] implements it.
type PlaylistBuilder interface {
	Build(ctx context.Context, accessToken string, songs []string) (*models.PlaylistJob, error)
}

// API serves the proxy endpoints.
type API struct {
	upstream    Upstream
	token       ProcessToken
	builder     PlaylistBuilder
	states      StateStore
	frontendURL string
	logger      *log.Logger
}

// APIOptions holds the collaborators of [API]. States defaults to [NoopStateStore].
type APIOptions struct {
	Upstream    Upstream
	Token       ProcessToken
	Builder     PlaylistBuilder
	States      StateStore
	FrontendURL string
	Logger      *log.Logger
}

// NewAPI creates the handler set.
func NewAPI(opts APIOptions) *API {
	if opts.States == nil {
		opts.States = NoopStateStore{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &API{
		upstream:    opts.Upstream,
		token:       opts.Token,
		builder:     opts.Builder,
		states:      opts.States,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		logger:      opts.Logger,
	}
}

// Register mounts every endpoint on r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/search", http.HandlerFunc(a.Search))
	r.Handle(http.MethodGet, "/login", http.HandlerFunc(a.Login))
	r.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.Callback))
	r.Handle(http.MethodPost, "/refresh-token", http.HandlerFunc(a.RefreshToken))
	r.Handle(http.MethodPost, "/create-playlist", http.HandlerFunc(a.CreatePlaylist))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
}

func (a *API) log(r *http.Request) *log.Logger {
	return shared.WithLogger(a.logger, "request_id", RequestIDFrom(r.Context()))
}

// Search relays a track search made with the process token.
func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	logger := a.log(r)

	// Without a process token the upstream rejects the call, which surfaces as a 500.
	token := a.token.AccessToken()
	if token == "" {
		logger.Warn("searching without process token")
	}

	resp, err := a.upstream.Search(r.Context(), token, r.URL.Query().Get("query"))
	if err != nil {
		logger.Error("error searching for songs", "error", err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

// Login redirects to the authorize page.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	state, err := a.states.Issue(r.Context(), w)
	if err != nil {
		a.log(r).Error("failed to issue oauth state", "error", err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, a.upstream.AuthCodeURL(state), http.StatusFound)
}

// Callback exchanges the code and hands the access token to the frontend.
func (a *API) Callback(w http.ResponseWriter, r *http.Request) {
	logger := a.log(r)
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		if e := q.Get("error"); e != "" {
			logger.Warn("authorization denied", "error", e)
		}
		http.Redirect(w, r, "/?error=missing_code", http.StatusFound)
		return
	}

	if err := a.states.Verify(r.Context(), w, r, q.Get("state")); err != nil {
		logger.Warn("rejected oauth state", "error", err)
		http.Redirect(w, r, "/?error=state_mismatch", http.StatusFound)
		return
	}

	token, err := a.upstream.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("error fetching spotify token", "error", err)
		http.Redirect(w, r, "/?error=invalid_token", http.StatusFound)
		return
	}

	target := a.frontendURL + "/?access_token=" + url.QueryEscape(token.AccessToken)
	http.Redirect(w, r, target, http.StatusFound)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken relays a refresh-token grant. It never touches the process token.
func (a *API) RefreshToken(w http.ResponseWriter, r *http.Request) {
	logger := a.log(r)

	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		logger.Warn("invalid refresh request", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	resp, err := a.upstream.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		logger.Error("error refreshing token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to refresh token"})
		return
	}

	w.Header().Set("Content-Type", resp.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

type createPlaylistRequest struct {
	Songs       []string `json:"songs"`
	AccessToken string   `json:"access_token"`
}

// CreatePlaylist builds a playlist from exactly three songs.
func (a *API) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	logger := a.log(r)

	var req createPlaylistRequest
	if err := decodeBody(w, r, &req); err != nil {
		writePlain(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if err := tasks.ValidateSelection(req.AccessToken, req.Songs); err != nil {
		writePlain(w, http.StatusBadRequest, "Invalid request.")
		return
	}

	job, err := a.builder.Build(r.Context(), req.AccessToken, req.Songs)
	if err != nil {
		args := []any{"error", err}
		if job != nil {
			args = append(args, "job", job.ID, "status", job.Status, "playlist", job.PlaylistID)
		}
		logger.Error("error creating playlist", args...)
		writePlain(w, http.StatusInternalServerError, "Failed to create playlist")
		return
	}

	logger.Info("playlist created", "job", job.ID, "playlist", job.PlaylistID)
	writePlain(w, http.StatusOK, "Playlist created successfully!")
}

// Health reports liveness and whether a process token is held.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"token":  a.token.AccessToken() != "",
	})
}

// decodeBody reads a JSON object. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePlain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}

func writeStatus(w http.ResponseWriter, status int) {
	writePlain(w, status, http.StatusText(status))
}
