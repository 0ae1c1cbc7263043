package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/tuneblend/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// StateLength is the number of characters in an OAuth state value.
const StateLength = 16

// StateStore issues the OAuth state for /login and checks it on /callback.
type StateStore interface {
	// Issue returns a fresh state, recording it however the store needs to.
	Issue(ctx context.Context, w http.ResponseWriter) (string, error)
	// Verify returns an error wrapping [shared.ErrStateMismatch] when state was not issued by this store.
	Verify(ctx context.Context, w http.ResponseWriter, r *http.Request, state string) error
}

// NoopStateStore generates a state but never checks it.
type NoopStateStore struct{}

func (NoopStateStore) Issue(context.Context, http.ResponseWriter) (string, error) {
	return shared.GenerateState(StateLength)
}

func (NoopStateStore) Verify(context.Context, http.ResponseWriter, *http.Request, string) error {
	return nil
}

const stateCookieName = "tuneblend_oauth_state"

type stateClaims struct {
	jwt.RegisteredClaims
	State string `json:"state"`
}

// CookieStateStore signs the state into an HttpOnly cookie as an HS256 JWT.
type CookieStateStore struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieStateStore creates a cookie store. secure marks the cookie Secure.
func NewCookieStateStore(secret string, ttl time.Duration, secure bool) (*CookieStateStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: cookie state store needs a secret", shared.ErrInvalidConfig)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CookieStateStore{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}, nil
}

func (s *CookieStateStore) Issue(_ context.Context, w http.ResponseWriter) (string, error) {
	state, err := shared.GenerateState(StateLength)
	if err != nil {
		return "", err
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "tuneblend",
		},
		State: state,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func (s *CookieStateStore) Verify(_ context.Context, w http.ResponseWriter, r *http.Request, state string) error {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return fmt.Errorf("%w: no state cookie", shared.ErrStateMismatch)
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: s.secure})

	claims := &stateClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStateMismatch, err)
	}

	if state == "" || subtle.ConstantTimeCompare([]byte(claims.State), []byte(state)) != 1 {
		return fmt.Errorf("%w: state does not match cookie", shared.ErrStateMismatch)
	}
	return nil
}

// RedisClient is the subset of [*redis.Client] used by [RedisStateStore].
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

const redisStatePrefix = "tuneblend:oauth_state:"

// RedisStateStore keeps issued states in Redis with a TTL and consumes them on verify.
type RedisStateStore struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisStateStore creates a store over client.
func NewRedisStateStore(client RedisClient, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStateStore) Issue(ctx context.Context, _ http.ResponseWriter) (string, error) {
	state, err := shared.GenerateState(StateLength)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisStatePrefix+state, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return state, nil
}

func (s *RedisStateStore) Verify(ctx context.Context, _ http.ResponseWriter, _ *http.Request, state string) error {
	if state == "" {
		return fmt.Errorf("%w: missing state", shared.ErrStateMismatch)
	}

	err := s.client.GetDel(ctx, redisStatePrefix+state).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return fmt.Errorf("%w: unknown or expired state", shared.ErrStateMismatch)
	case err != nil:
		return fmt.Errorf("failed to check state: %w", err)
	}
	return nil
}
