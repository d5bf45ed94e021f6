// Package session keeps the authenticated ArchiveBox session.
//
// The Manager has two states. It starts Unauthenticated; Ensure performs the
// login handshake once and moves it to Authenticated. A session falls back to
// Unauthenticated when:
//
//   - it is older than the configured TTL (zero TTL never expires)
//   - Invalidate is called, typically after the server rejected it
//   - the connection settings (base URI, credentials, basic auth) change
//
// Concurrent Ensure calls share a single login.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/metrics"
)

// Authenticator performs the login handshake
type Authenticator interface {
	Login(ctx context.Context, cfg *config.Config) (string, error)
}

// Session is an authenticated credential
type Session struct {
	ID         string
	ObtainedAt time.Time
}

// Manager owns the current session
type Manager struct {
	auth    Authenticator
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	current *Session
	key     string // ConnectionKey the current session was obtained under

	group singleflight.Group
}

// NewManager creates an unauthenticated manager
func NewManager(auth Authenticator, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{auth: auth, logger: logger, metrics: m, now: time.Now}
}

// Current returns the session if it is still valid under cfg
func (m *Manager) Current(cfg *config.Config) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked(cfg)
}

// Authenticated reports whether Ensure would return without logging in
func (m *Manager) Authenticated(cfg *config.Config) bool {
	_, ok := m.Current(cfg)
	return ok
}

func (m *Manager) validLocked(cfg *config.Config) (Session, bool) {
	if m.current == nil {
		return Session{}, false
	}
	if m.key != cfg.ConnectionKey() {
		m.logger.Debug("connection settings changed, dropping session")
		m.current = nil
		return Session{}, false
	}
	if ttl := cfg.Session.TTL; ttl > 0 && m.now().Sub(m.current.ObtainedAt) >= ttl {
		m.logger.Debug("session expired", zap.Duration("ttl", ttl))
		m.current = nil
		return Session{}, false
	}
	return *m.current, true
}

// Ensure returns a valid session, logging in if needed
func (m *Manager) Ensure(ctx context.Context, cfg *config.Config) (Session, error) {
	if s, ok := m.Current(cfg); ok {
		return s, nil
	}

	key := cfg.ConnectionKey()
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// Another caller may have finished logging in while we waited
		if s, ok := m.Current(cfg); ok {
			return s, nil
		}

		m.logger.Info("logging into ArchiveBox", zap.String("base", cfg.BaseURL()))
		id, err := m.auth.Login(ctx, cfg)
		m.metrics.Login(err == nil)
		if err != nil {
			m.logger.Warn("ArchiveBox login failed", zap.Error(err))
			return Session{}, err
		}

		s := Session{ID: id, ObtainedAt: m.now()}
		m.mu.Lock()
		m.current = &s
		m.key = key
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return Session{}, err
	}
	return v.(Session), nil
}

// Invalidate drops the current session
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}
