// Package session implements cookie-backed server-side sessions.
//
// The cookie carries a signed token naming a session id; the session data
// itself ({user id, role}) lives in a Backend (redis or process memory).
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/inkwell/blog/models"
)

// ErrNoSession is returned by backends for unknown or expired session ids.
var ErrNoSession = errors.New("session not found")

// Data is the server-side state of a logged-in browser.
type Data struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
}

// Backend stores session data by id with a TTL.
type Backend interface {
	Save(ctx context.Context, id string, data Data, ttl time.Duration) error
	Load(ctx context.Context, id string) (*Data, error)
	Delete(ctx context.Context, id string) error
}

// Options configures the cookie side of a Manager.
type Options struct {
	CookieName string
	Secret     []byte
	TTL        time.Duration
	Secure     bool
}

// Manager ties the cookie to the backend.
type Manager struct {
	backend Backend
	opts    Options
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager creates a session manager.
func NewManager(backend Backend, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "blog_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{backend: backend, opts: opts}
}

// Create starts a new session for data and sets the cookie on the response.
func (m *Manager) Create(ctx *gin.Context, data Data) error {
	id := uuid.NewString()
	if err := m.backend.Save(ctx.Request.Context(), id, data, m.opts.TTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	token, err := m.sign(id)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	m.setCookie(ctx, token, int(m.opts.TTL/time.Second))
	return nil
}

// Current returns the session of the request, or nil when there is none.
// Missing, tampered and expired cookies all count as no session; only
// backend failures are returned as errors.
func (m *Manager) Current(ctx *gin.Context) (*Data, error) {
	id, ok := m.sessionID(ctx)
	if !ok {
		return nil, nil
	}
	data, err := m.backend.Load(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return data, nil
}

// Destroy removes the request's session and clears the cookie.
func (m *Manager) Destroy(ctx *gin.Context) error {
	id, ok := m.sessionID(ctx)
	m.setCookie(ctx, "", -1)
	if !ok {
		return nil
	}
	if err := m.backend.Delete(ctx.Request.Context(), id); err != nil && !errors.Is(err, ErrNoSession) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) sessionID(ctx *gin.Context) (string, bool) {
	raw, err := ctx.Cookie(m.opts.CookieName)
	if err != nil || raw == "" {
		return "", false
	}
	claims := &cookieClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.opts.Secret, nil
	})
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return "", false
	}
	return claims.SessionID, true
}

func (m *Manager) sign(id string) (string, error) {
	now := time.Now()
	claims := cookieClaims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.opts.Secret)
}

func (m *Manager) setCookie(ctx *gin.Context, value string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(m.opts.CookieName, value, maxAge, "/", "", m.opts.Secure, true)
}
