package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneblend/internal/services"
	"github.com/desertthunder/tuneblend/internal/tasks"
	tu "github.com/desertthunder/tuneblend/internal/testing"
)

const frontendURL = "http://localhost:3000"

type harness struct {
	fake    *tu.FakeSpotify
	tokens  *services.TokenProvider
	handler http.Handler
}

func newHarness(t *testing.T, configure ...func(*APIOptions)) *harness {
	t.Helper()

	logger := log.New(io.Discard)
	fake := tu.NewFakeSpotify(t)

	client, err := services.NewSpotifyClient(services.SpotifyOptions{
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:3001/callback",
		AccountsURL:  fake.AccountsURL(),
		APIURL:       fake.APIURL(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	tokens := services.NewTokenProvider(client, logger)
	if err := tokens.Fetch(context.Background()); err != nil {
		t.Fatalf("failed to fetch startup token: %v", err)
	}
	fake.Reset()

	opts := APIOptions{
		Upstream:    client,
		Token:       tokens,
		Builder:     tasks.NewPlaylistBuilder(client, nil, tasks.DefaultBuildOptions(), logger),
		FrontendURL: frontendURL,
		Logger:      logger,
	}
	for _, fn := range configure {
		fn(&opts)
	}

	router := NewBasicRouter()
	router.Use(Recovery(logger), RequestID(), Logging(logger), CORS(nil))
	NewAPI(opts).Register(router)

	return &harness{fake: fake, tokens: tokens, handler: router}
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

const validPlaylist = `{"songs":["spotify:track:1","spotify:track:2","spotify:track:3"],"access_token":"user-token"}`

func TestSearch(t *testing.T) {
	t.Run("Relays Upstream Body", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/search?query=daft+punk", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != tu.SearchBody {
			t.Errorf("expected verbatim body, got %s", rec.Body.String())
		}

		calls := h.fake.Calls()
		if len(calls) != 1 || calls[0].Route != tu.RouteSearch {
			t.Fatalf("expected exactly one search call, got %+v", calls)
		}
		if calls[0].Authorization != "Bearer "+tu.FakeAppToken {
			t.Errorf("expected process token, got %q", calls[0].Authorization)
		}
		if calls[0].Query.Get("q") != "daft punk" || calls[0].Query.Get("type") != "track" {
			t.Errorf("unexpected upstream query: %v", calls[0].Query)
		}
	})

	t.Run("Upstream Errors Become 500", func(t *testing.T) {
		for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
			h := newHarness(t)
			h.fake.Fail(tu.RouteSearch, status)

			rec := h.do(http.MethodGet, "/search?query=x", "")
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("upstream %d: expected 500, got %d", status, rec.Code)
			}
			if strings.Contains(rec.Body.String(), "injected") {
				t.Errorf("upstream %d: error detail leaked: %s", status, rec.Body.String())
			}
			if n := len(h.fake.CallsTo(tu.RouteSearch)); n != 1 {
				t.Errorf("upstream %d: expected 1 call, got %d", status, n)
			}
		}
	})

	t.Run("No Process Token", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.Set(nil)

		rec := h.do(http.MethodGet, "/search?query=x", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		calls := h.fake.Calls()
		if len(calls) != 1 || calls[0].Route != tu.RouteSearch {
			t.Fatalf("expected exactly one search call, got %+v", calls)
		}
		if strings.TrimSpace(calls[0].Authorization) != "Bearer" {
			t.Errorf("expected empty bearer token, got %q", calls[0].Authorization)
		}
	})

	t.Run("Concurrent Requests Share Token", func(t *testing.T) {
		h := newHarness(t)

		var wg sync.WaitGroup
		codes := make(chan int, 20)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				codes <- h.do(http.MethodGet, "/search?query=x", "").Code
			}()
		}
		wg.Wait()
		close(codes)

		for code := range codes {
			if code != http.StatusOK {
				t.Errorf("expected 200, got %d", code)
			}
		}
		for _, c := range h.fake.CallsTo(tu.RouteSearch) {
			if c.Authorization != "Bearer "+tu.FakeAppToken {
				t.Errorf("corrupted authorization header %q", c.Authorization)
			}
		}
	})
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/login", "")

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid location: %v", err)
	}
	upstream, _ := url.Parse(h.fake.AccountsURL())
	if loc.Host != upstream.Host || loc.Path != "/authorize" {
		t.Errorf("expected upstream authorize url, got %s", loc)
	}

	q := loc.Query()
	for _, key := range []string{"client_id", "scope", "redirect_uri", "state", "response_type"} {
		if q.Get(key) == "" {
			t.Errorf("expected %s in redirect", key)
		}
	}
	if q.Get("scope") != "playlist-modify-public playlist-modify-private" {
		t.Errorf("unexpected scope %q", q.Get("scope"))
	}
	if len(q.Get("state")) != StateLength {
		t.Errorf("expected %d char state, got %q", StateLength, q.Get("state"))
	}
	if len(h.fake.Calls()) != 0 {
		t.Error("login should not call upstream")
	}
}

func TestCallback(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/callback?code="+tu.FakeCode, "")

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		want := frontendURL + "/?access_token=" + tu.FakeUserToken
		if got := rec.Header().Get("Location"); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}

		calls := h.fake.CallsTo(tu.RouteToken)
		if len(calls) != 1 || calls[0].Form().Get("grant_type") != "authorization_code" {
			t.Errorf("unexpected token calls: %+v", calls)
		}
	})

	t.Run("Missing Code", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/callback", "")

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get("Location"), "error=missing_code") {
			t.Errorf("unexpected location %s", rec.Header().Get("Location"))
		}
		if len(h.fake.Calls()) != 0 {
			t.Error("expected no upstream calls")
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/callback?code=bogus", "")

		if got := rec.Header().Get("Location"); got != "/?error=invalid_token" {
			t.Errorf("unexpected location %s", got)
		}
	})

	t.Run("Cookie State", func(t *testing.T) {
		store, err := NewCookieStateStore("secret", time.Minute, false)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		h := newHarness(t, func(o *APIOptions) { o.States = store })

		login := h.do(http.MethodGet, "/login", "")
		loc, _ := url.Parse(login.Header().Get("Location"))
		state := loc.Query().Get("state")

		t.Run("Matching", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/callback?code="+tu.FakeCode+"&state="+state, nil)
			for _, c := range login.Result().Cookies() {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			h.handler.ServeHTTP(rec, req)

			if !strings.Contains(rec.Header().Get("Location"), "access_token="+tu.FakeUserToken) {
				t.Errorf("unexpected location %s", rec.Header().Get("Location"))
			}
		})

		t.Run("Without Cookie", func(t *testing.T) {
			h.fake.Reset()
			rec := h.do(http.MethodGet, "/callback?code="+tu.FakeCode+"&state="+state, "")
			if got := rec.Header().Get("Location"); got != "/?error=state_mismatch" {
				t.Errorf("unexpected location %s", got)
			}
			if len(h.fake.Calls()) != 0 {
				t.Error("rejected state should not reach the token endpoint")
			}
		})
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("Relays Upstream Body", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodPost, "/refresh-token", `{"refreshToken":"r1"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected json: %v", err)
		}
		if body["access_token"] != tu.FakeRefreshedToken {
			t.Errorf("unexpected body %s", rec.Body.String())
		}

		call := h.fake.CallsTo(tu.RouteToken)[0]
		if call.BasicUser != services.DefaultRefreshClientID || call.BasicPass != services.DefaultRefreshClientSecret {
			t.Errorf("expected refresh credential pair, got %s:%s", call.BasicUser, call.BasicPass)
		}
		if h.tokens.AccessToken() != tu.FakeAppToken {
			t.Error("refresh must not replace the process token")
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		h := newHarness(t)
		h.fake.Fail(tu.RouteToken, http.StatusBadRequest)

		rec := h.do(http.MethodPost, "/refresh-token", `{"refreshToken":"r1"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"Failed to refresh token"}` {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("Empty Body Forwards Empty Token", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodPost, "/refresh-token", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if len(h.fake.CallsTo(tu.RouteToken)) != 1 {
			t.Error("expected the grant to be forwarded")
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodPost, "/refresh-token", `{"refreshToken":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(h.fake.Calls()) != 0 {
			t.Error("expected no upstream calls")
		}
	})
}

func TestCreatePlaylist(t *testing.T) {
	t.Run("Invalid Requests Make No Calls", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"no songs", `{"access_token":"user-token"}`},
			{"empty songs", `{"songs":[],"access_token":"user-token"}`},
			{"two songs", `{"songs":["a","b"],"access_token":"user-token"}`},
			{"four songs", `{"songs":["a","b","c","d"],"access_token":"user-token"}`},
			{"missing token", `{"songs":["a","b","c"]}`},
			{"empty token", `{"songs":["a","b","c"],"access_token":""}`},
			{"malformed json", `{"songs":`},
			{"wrong type", `{"songs":"abc","access_token":"user-token"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				rec := h.do(http.MethodPost, "/create-playlist", tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", rec.Code)
				}
				if rec.Body.String() != "Invalid request." {
					t.Errorf("unexpected body %q", rec.Body.String())
				}
				if len(h.fake.Calls()) != 0 {
					t.Errorf("expected no upstream calls, got %+v", h.fake.Calls())
				}
			})
		}
	})

	t.Run("Success", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodPost, "/create-playlist", validPlaylist)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "Playlist created successfully!" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}

		calls := h.fake.Calls()
		if len(calls) != 2 || calls[0].Route != tu.RouteCreate || calls[1].Route != tu.RouteAdd {
			t.Fatalf("expected create then add, got %+v", calls)
		}
		for _, c := range calls {
			if c.Authorization != "Bearer user-token" {
				t.Errorf("expected caller token, got %q", c.Authorization)
			}
		}
		if !strings.Contains(string(calls[0].Body), `"public":false`) {
			t.Errorf("expected private playlist, got %s", calls[0].Body)
		}
	})

	t.Run("Step Failures", func(t *testing.T) {
		for _, route := range []string{tu.RouteCreate, tu.RouteAdd} {
			h := newHarness(t)
			h.fake.Fail(route, http.StatusForbidden)

			rec := h.do(http.MethodPost, "/create-playlist", validPlaylist)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("%s failing: expected 500, got %d", route, rec.Code)
			}
			if rec.Body.String() != "Failed to create playlist" {
				t.Errorf("%s failing: unexpected body %q", route, rec.Body.String())
			}
			if len(h.fake.CallsTo(tu.RouteUnfollow)) != 0 {
				t.Errorf("%s failing: compensation should be off by default", route)
			}
		}
	})
}

func TestHealthAndMethods(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Token  bool   `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected json: %v", err)
	}
	if body.Status != "ok" || !body.Token {
		t.Errorf("unexpected health %+v", body)
	}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/create-playlist"},
		{http.MethodGet, "/refresh-token"},
		{http.MethodPost, "/search"},
		{http.MethodDelete, "/login"},
	} {
		if rec := h.do(tc.method, tc.path, ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
	}

	if rec := h.do(http.MethodGet, "/search?query=x", ""); rec.Header().Get(HeaderRequestID) == "" {
		t.Error("expected request id header")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/create-playlist", "/refresh-token", "/search"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "content-type")

			rec := httptest.NewRecorder()
			h.handler.ServeHTTP(rec, req)

			if rec.Code == http.StatusMethodNotAllowed {
				t.Fatal("preflight reached the method filter")
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("expected wildcard allow origin, got %q", got)
			}
			if len(h.fake.Calls()) != 0 {
				t.Errorf("preflight must not call upstream, got %+v", h.fake.Calls())
			}
		})
	}
}
