package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	jwt "github.com/golang-jwt/jwt/v5"

	"priceoptool/internal/credstore"
	"priceoptool/internal/events"
	"priceoptool/internal/notify"
	"priceoptool/pkg/domain"
)

// ErrNoSession indicates an operation that needs an active session.
var ErrNoSession = errors.New("no active session")

// AuthAPI is the slice of the backend client the manager needs.
type AuthAPI interface {
	Logout(ctx context.Context, refresh string) error
	RefreshAccess(ctx context.Context, refresh string) (string, error)
}

// Config wires the manager's collaborators.
type Config struct {
	API   AuthAPI
	Creds credstore.Store
	Sink  *notify.Sink
	Bus   *events.Bus
}

// Manager owns the authentication state: the current user record with its
// access and refresh tokens, mirrored to durable storage after every
// mutation. A session is active iff a user record is present.
type Manager struct {
	api   AuthAPI
	creds credstore.Store
	sink  *notify.Sink
	bus   *events.Bus

	mu   sync.Mutex
	user *domain.User
	// generation bumps on every login and clear; an in-flight refresh
	// response is applied only if the generation it was sent under is
	// still current, so a stale response cannot resurrect a session.
	generation uint64
}

// NewManager builds a manager and restores any persisted session.
// A corrupt or unreadable blob is treated as no session.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		api:   cfg.API,
		creds: cfg.Creds,
		sink:  cfg.Sink,
		bus:   cfg.Bus,
	}
	user, ok, err := cfg.Creds.Load()
	if err != nil {
		slog.Warn("restore session failed", "err", err)
	} else if ok {
		m.user = &user
	}
	return m
}

// Login stores user as the current session and persists it. The record
// is taken as-is; the caller guarantees it came from the login endpoint.
func (m *Manager) Login(user domain.User) error {
	m.mu.Lock()
	m.user = &user
	m.generation++
	err := m.creds.Save(user)
	m.mu.Unlock()
	m.publishChanged()
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Logout revokes the refresh token at the backend and clears the session.
// A network failure surfaces a notification but never blocks the local
// logout; memory and durable storage are cleared regardless.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	refresh := m.user.Refresh
	m.mu.Unlock()

	if err := m.api.Logout(ctx, refresh); err != nil {
		slog.Warn("logout request failed", "err", err)
		m.sink.Publish("Logout Failed!")
	}

	m.mu.Lock()
	m.clearLocked()
	m.mu.Unlock()
	m.publishChanged()
}

// RefreshToken exchanges the refresh token for a new access token. On
// success only the access field is replaced and re-persisted. A failure
// is terminal for the session: no retry, state cleared, caller should
// fall back to the unauthenticated landing state.
func (m *Manager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	refresh := m.user.Refresh
	gen := m.generation
	m.mu.Unlock()

	access, err := m.api.RefreshAccess(ctx, refresh)

	m.mu.Lock()
	if m.generation != gen {
		// Session was logged out or replaced while the exchange was in
		// flight; the response no longer belongs to anyone.
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.clearLocked()
		m.mu.Unlock()
		m.sink.Publish("Failed to fetch refresh token!")
		m.publishChanged()
		return fmt.Errorf("refresh token: %w", err)
	}
	m.user.Access = access
	saveErr := m.creds.Save(*m.user)
	m.mu.Unlock()
	m.publishChanged()
	if saveErr != nil {
		return fmt.Errorf("persist session: %w", saveErr)
	}
	return nil
}

// AccessToken returns the current access token, or "" without a session.
// Implements apiclient.TokenSource.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ""
	}
	return m.user.Access
}

// User returns a copy of the current session record.
func (m *Manager) User() (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return domain.User{}, false
	}
	return *m.user, true
}

// IsLoggedIn reports whether a session is active.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// Claims decodes the access token's registered claims without verifying
// the signature; the client has no key material and only needs expiry
// and subject for display.
func (m *Manager) Claims() (jwt.RegisteredClaims, error) {
	m.mu.Lock()
	access := ""
	if m.user != nil {
		access = m.user.Access
	}
	m.mu.Unlock()
	if access == "" {
		return jwt.RegisteredClaims{}, ErrNoSession
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return jwt.RegisteredClaims{}, fmt.Errorf("decode access token: %w", err)
	}
	return claims, nil
}

func (m *Manager) clearLocked() {
	m.user = nil
	m.generation++
	if err := m.creds.Clear(); err != nil {
		slog.Warn("clear persisted session failed", "err", err)
	}
}

func (m *Manager) publishChanged() {
	if m.bus != nil {
		m.bus.Publish(events.TopicSessionChanged)
	}
}
