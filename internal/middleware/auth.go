package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/repositories"
	"github.com/filevault/backend/internal/session"
	"go.uber.org/zap"
)

// Redirect targets of the guards
const (
	LoginPath         = "/login"
	UserDashboardPath = "/user"
)

// PermissionDeniedMessage is the notice shown when a non-admin reaches an admin route
const PermissionDeniedMessage = "You do not have permission to access this page."

// SessionManager is the interface that wraps the session operations used by the guards
type SessionManager interface {
	Load(r *http.Request) (*session.Session, bool)
	Teardown(w http.ResponseWriter, r *http.Request) error
	AddNotice(w http.ResponseWriter, r *http.Request, kind models.NoticeKind, message string)
}

// UserLookup is the interface that wraps the user lookup used to refresh sessions
type UserLookup interface {
	GetByID(ctx context.Context, userID int) (*models.User, error)
}

// Guard gates handlers on session state and role
type Guard struct {
	sessions SessionManager
	users    UserLookup
	logger   *zap.Logger
}

// NewGuard creates a new Guard
func NewGuard(sessions SessionManager, users UserLookup, logger *zap.Logger) *Guard {
	return &Guard{
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// RequireLogin redirects requests without a session to the login page.
// The session is refreshed from the user store, so deleted accounts are logged out
// and role changes apply on the next request.
func (g *Guard) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.sessions.Load(r)
		if !ok {
			redirectToLogin(w, r)
			return
		}

		user, err := g.users.GetByID(r.Context(), sess.UserID)
		if errors.Is(err, repositories.ErrNotFound) {
			g.logger.Info("session of deleted user cleared", zap.Int("userId", sess.UserID))
			if err := g.sessions.Teardown(w, r); err != nil {
				g.logger.Error("failed to clear session", zap.Error(err))
			}
			redirectToLogin(w, r)
			return
		}
		if err != nil {
			g.logger.Error("failed to load session user",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Int("userId", sess.UserID),
				zap.Error(err),
			)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		sess.Username = user.Username
		sess.Role = user.Role

		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
	})
}

// RequireAdmin applies RequireLogin, then sends non-admins to their dashboard with a notice
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		if !sess.IsAdmin() {
			g.logger.Warn("admin route denied",
				zap.Int("userId", sess.UserID),
				zap.String("path", r.URL.Path),
			)
			g.sessions.AddNotice(w, r, models.NoticeError, PermissionDeniedMessage)
			http.Redirect(w, r, UserDashboardPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// redirectToLogin sends the client to the login page, keeping the target of GET requests
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath
	if r.Method == http.MethodGet {
		target += "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}
