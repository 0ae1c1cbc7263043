// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// ConfigureLogger applies a level name (debug, info, warn, error) and output format (text, json) to l.
func ConfigureLogger(l *log.Logger, level, format string) error {
	if level != "" {
		ll, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("%w: log level %q", ErrInvalidConfig, level)
		}
		l.SetLevel(ll)
	}

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(log.TextFormatter)
	case "json":
		l.SetFormatter(log.JSONFormatter)
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, format)
	}
	return nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState returns n characters drawn uniformly from [A-Za-z0-9].
func GenerateState(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: state length must be positive", ErrInvalidArgument)
	}

	max := big.NewInt(int64(len(stateAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for range n {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random state: %w", err)
		}
		b.WriteByte(stateAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
