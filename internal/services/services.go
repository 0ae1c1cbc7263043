package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/tuneblend/internal/shared"
)

// Track is a catalog track as shown by the CLI.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	URI      string `json:"uri"`
	Duration int    `json:"duration"` // Duration in seconds
}

// NewPlaylist is the body of a create-playlist request.
type NewPlaylist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// RawResponse is an upstream reply relayed without decoding.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ContentType returns the upstream content type, defaulting to JSON.
func (r *RawResponse) ContentType() string {
	if ct := r.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

// UpstreamError is a non-2xx reply from the accounts service or the Web API.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("spotify %s: status %d: %s", e.Op, e.StatusCode, truncate(string(e.Body), 200))
}

// Unwrap exposes [shared.ErrAPIRequest], plus [shared.ErrTokenExpired] for 401 replies.
func (e *UpstreamError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized {
		return []error{shared.ErrAPIRequest, shared.ErrTokenExpired}
	}
	return []error{shared.ErrAPIRequest}
}

// StatusCode extracts the upstream status from err, or 0 when err is not an [UpstreamError].
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
