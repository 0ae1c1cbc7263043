package testing

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Route keys recorded by [FakeSpotify].
const (
	RouteToken    = "token"
	RouteSearch   = "search"
	RouteCreate   = "create"
	RouteAdd      = "add"
	RouteUnfollow = "unfollow"
)

// Tokens handed out by [FakeSpotify].
const (
	FakeAppToken       = "app-token"
	FakeUserToken      = "user-token"
	FakeRefreshToken   = "user-refresh"
	FakeRefreshedToken = "refreshed-token"
	FakeCode           = "abc123"
	FakePlaylistID     = "playlist123"
)

// SearchBody is the JSON returned by the fake search endpoint.
const SearchBody = `{"tracks":{"href":"","items":[{"id":"t1","name":"Song One","uri":"spotify:track:t1","duration_ms":215000,"artists":[{"id":"a1","name":"Artist"}],"album":{"id":"al1","name":"Album"}}],"limit":20,"offset":0,"total":1}}`

// Call is one request received by [FakeSpotify].
type Call struct {
	Route         string
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	BasicUser     string
	BasicPass     string
	Body          []byte
}

// Form parses a form-encoded body.
func (c Call) Form() url.Values {
	v, _ := url.ParseQuery(string(c.Body))
	return v
}

// FakeSpotify is an httptest server standing in for the accounts service and Web API.
//
// Accounts endpoints live at the server root, the Web API under /v1.
type FakeSpotify struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []Call
	fail  map[string]int

	searchToken string
}

// NewFakeSpotify starts a fake upstream that is closed with the test.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{fail: map[string]int{}}

	mux := http.NewServeMux()
	mux.Handle("POST /api/token", f.record(RouteToken, http.HandlerFunc(f.token)))
	mux.Handle("GET /v1/search", f.record(RouteSearch, http.HandlerFunc(f.search)))
	mux.Handle("POST /v1/me/playlists", f.record(RouteCreate, http.HandlerFunc(f.createPlaylist)))
	mux.Handle("POST /v1/playlists/{id}/tracks", f.record(RouteAdd, http.HandlerFunc(f.addTracks)))
	mux.Handle("DELETE /v1/playlists/{id}/followers", f.record(RouteUnfollow, http.HandlerFunc(f.unfollow)))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// AccountsURL is the base for /authorize and /api/token.
func (f *FakeSpotify) AccountsURL() string { return f.Server.URL }

// APIURL is the Web API base.
func (f *FakeSpotify) APIURL() string { return f.Server.URL + "/v1" }

// Fail makes route answer with status until cleared with status 0.
func (f *FakeSpotify) Fail(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.fail, route)
		return
	}
	f.fail[route] = status
}

// RequireSearchToken makes search reject any bearer token other than token. Empty accepts any.
func (f *FakeSpotify) RequireSearchToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchToken = token
}

// Calls returns a copy of every recorded call in arrival order.
func (f *FakeSpotify) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls for one route.
func (f *FakeSpotify) CallsTo(route string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Route == route {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls and injected failures.
func (f *FakeSpotify) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.fail = map[string]int{}
	f.searchToken = ""
}

func (f *FakeSpotify) record(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		user, pass, _ := r.BasicAuth()
		call := Call{
			Route:         route,
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			BasicUser:     user,
			BasicPass:     pass,
			Body:          body,
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		status := f.fail[route]
		f.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "injected failure"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	if user, _, _ := r.BasicAuth(); user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "client_credentials":
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": FakeAppToken, "token_type": "Bearer", "expires_in": 3600,
		})
	case "authorization_code":
		if r.PostForm.Get("code") != FakeCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": FakeUserToken, "token_type": "Bearer", "expires_in": 3600,
			"refresh_token": FakeRefreshToken, "scope": "playlist-modify-public playlist-modify-private",
		})
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": FakeRefreshedToken, "token_type": "Bearer", "expires_in": 3600,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeSpotify) search(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	f.mu.Lock()
	want := f.searchToken
	f.mu.Unlock()

	if token == "" || (want != "" && token != want) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "Invalid access token"}})
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, SearchBody)
}

func (f *FakeSpotify) createPlaylist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]any{"id": FakePlaylistID, "name": "created"})
}

func (f *FakeSpotify) addTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": "snap-" + r.PathValue("id")})
}

func (f *FakeSpotify) unfollow(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
