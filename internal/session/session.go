// Package session issues the signed token that carries the logged-in
// identity. Rate-limit keys are namespaced by the identity it carries.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evalprof/internal/device"
	"evalprof/internal/metrics"
)

var (
	ErrInvalidToken  = errors.New("session: invalid token")
	ErrMissingSecret = errors.New("session: secret is required")
	ErrInvalidTTL    = errors.New("session: ttl must be positive")
)

const issuer = "evalprof"

// Identity is the anonymous user behind a request.
type Identity struct {
	Username  string    `json:"username"`
	DeviceID  string    `json:"device_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	Username string `json:"usr"`
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	metrics *metrics.Registry
	now     func() time.Time
}

func NewManager(secret string, ttl time.Duration, metricsRegistry *metrics.Registry) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		metrics: metricsRegistry,
		now:     time.Now,
	}, nil
}

// WithClock replaces time.Now for issuing and verifying.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue signs a token for username on deviceID with a fresh session id.
func (m *Manager) Issue(username, deviceID string) (string, Identity, error) {
	now := m.now()
	id := Identity{
		Username:  username,
		DeviceID:  deviceID,
		SessionID: device.NewSessionID(),
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: id.Username,
		DeviceID: id.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign session: %w", err)
	}
	m.metrics.Inc(metrics.SessionsIssuedTotal)
	return signed, id, nil
}

// Parse verifies token and returns its identity. Every failure wraps
// ErrInvalidToken.
func (m *Manager) Parse(token string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	var c claims
	if _, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}); err != nil {
		m.metrics.Inc(metrics.SessionsRejectedTotal)
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Username == "" || c.DeviceID == "" {
		m.metrics.Inc(metrics.SessionsRejectedTotal)
		return Identity{}, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}

	return Identity{
		Username:  c.Username,
		DeviceID:  c.DeviceID,
		SessionID: c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity placed by Require.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Require rejects requests without a valid bearer token and stores the
// identity in the request context otherwise.
func Require(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, "missing session", http.StatusUnauthorized)
				return
			}
			id, err := m.Parse(token)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin guards operator routes with a static bearer token. An empty
// token disables the routes entirely.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin api disabled", http.StatusForbidden)
				return
			}
			got := BearerToken(r)
			if got == "" {
				http.Error(w, "missing admin token", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "invalid admin token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
