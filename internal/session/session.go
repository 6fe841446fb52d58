// Package session binds the authenticated user to a signed cookie
package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/models"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	cookieName = "filevault_session"

	keyUserID   = "user_id"
	keyUsername = "username"
	keyRole     = "role"
)

// Session is the per-request view of the authenticated user
type Session struct {
	UserID   int
	Username string
	Role     models.Role
}

// IsAdmin reports whether the session belongs to an admin
func (s *Session) IsAdmin() bool {
	return s.Role.IsAdmin()
}

// Manager reads and writes sessions and their notices
type Manager struct {
	store  sessions.Store
	logger *zap.Logger
}

// NewManager creates a cookie backed session manager
func NewManager(cfg config.SessionConfig, logger *zap.Logger) *Manager {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.CookieSecure
	store.Options.SameSite = http.SameSiteLaxMode
	store.MaxAge(cfg.MaxAge)

	return &Manager{
		store:  store,
		logger: logger,
	}
}

// get returns the raw session. A cookie that fails verification yields a fresh session.
func (m *Manager) get(r *http.Request) *sessions.Session {
	sess, err := m.store.Get(r, cookieName)
	if err != nil {
		m.logger.Debug("discarding invalid session cookie", zap.Error(err))
	}
	return sess
}

// Load returns the authenticated session of the request, if any
func (m *Manager) Load(r *http.Request) (*Session, bool) {
	sess := m.get(r)

	userID, ok := sess.Values[keyUserID].(int)
	if !ok || userID <= 0 {
		return nil, false
	}
	username, _ := sess.Values[keyUsername].(string)
	role, _ := sess.Values[keyRole].(int)

	return &Session{
		UserID:   userID,
		Username: username,
		Role:     models.Role(role),
	}, true
}

// Establish binds user to the session cookie, replacing any previous state
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, user *models.User) error {
	sess := m.get(r)
	sess.Values = map[interface{}]interface{}{
		keyUserID:   user.ID,
		keyUsername: user.Username,
		keyRole:     int(user.Role),
	}
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Teardown clears all session state and expires the cookie
func (m *Manager) Teardown(w http.ResponseWriter, r *http.Request) error {
	sess := m.get(r)
	sess.Values = map[interface{}]interface{}{}
	opts := *sess.Options
	opts.MaxAge = -1
	sess.Options = &opts
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// AddNotice queues a notice shown on the next rendered view
func (m *Manager) AddNotice(w http.ResponseWriter, r *http.Request, kind models.NoticeKind, message string) {
	sess := m.get(r)
	sess.AddFlash(message, string(kind))
	if err := sess.Save(r, w); err != nil {
		m.logger.Error("failed to save notice", zap.Error(err))
	}
}

// Notices pops all queued notices, errors first
func (m *Manager) Notices(w http.ResponseWriter, r *http.Request) []models.Notice {
	sess := m.get(r)

	notices := []models.Notice{}
	for _, kind := range []models.NoticeKind{models.NoticeError, models.NoticeSuccess} {
		for _, flash := range sess.Flashes(string(kind)) {
			if msg, ok := flash.(string); ok {
				notices = append(notices, models.Notice{Kind: kind, Message: msg})
			}
		}
	}

	if len(notices) > 0 {
		if err := sess.Save(r, w); err != nil {
			m.logger.Error("failed to save session", zap.Error(err))
		}
	}
	return notices
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by NewContext
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
