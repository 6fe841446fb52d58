package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"go.uber.org/zap"
)

// AuthService is the interface that wraps methods for authentication
type AuthService interface {
	// Method Authenticate returns the user matching the credentials.
	//
	// Unknown usernames and wrong passwords both yield services.ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// Method ChangePassword replaces the password of "userID" after checking "currentPassword".
	ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error
}

// AuthHandler handles login, logout and own password changes
type AuthHandler struct {
	BaseHandler
	authService AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService, sessions SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: BaseHandler{logger: logger, sessions: sessions},
		authService: authService,
	}
}

// Root handles GET /
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPath, http.StatusFound)
}

// LoginPage handles GET /login.
// Signed in users go straight to their dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.sessions.Load(r); ok {
		http.Redirect(w, r, dashboardPath(sess.Role), http.StatusFound)
		return
	}

	view := models.LoginView{Notices: h.sessions.Notices(w, r)}
	if next := r.URL.Query().Get("next"); isLocalPath(next) {
		view.Next = next
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Login handles POST /login.
// A local "next" target survives failed attempts so the user still lands there.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	retry := loginRetryPath(next)

	if err := r.ParseForm(); err != nil {
		h.redirectWithNotice(w, r, retry, models.NoticeError, "Invalid form data.")
		return
	}

	user, err := h.authService.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.Info("failed login attempt", zap.String("ip", r.RemoteAddr))
		}
		h.redirectWithError(w, r, retry, err)
		return
	}

	if err := h.sessions.Establish(w, r, user); err != nil {
		h.redirectWithError(w, r, retry, err)
		return
	}

	h.logger.Info("user logged in", zap.Int("userId", user.ID))

	target := dashboardPath(user.Role)
	if isLocalPath(next) {
		target = next
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout handles GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Teardown(w, r); err != nil {
		h.logger.Error("failed to clear session", zap.Error(err))
	}
	http.Redirect(w, r, loginPath, http.StatusFound)
}

// ChangePassword handles POST /account/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	back := dashboardPath(sess.Role)

	if err := r.ParseForm(); err != nil {
		h.redirectWithNotice(w, r, back, models.NoticeError, "Invalid form data.")
		return
	}

	err := h.authService.ChangePassword(r.Context(), sess.UserID, r.PostForm.Get("current_password"), r.PostForm.Get("new_password"))
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.redirectWithNotice(w, r, back, models.NoticeError, "Current password is incorrect.")
		return
	}
	if err != nil {
		h.redirectWithError(w, r, back, err)
		return
	}

	h.redirectWithNotice(w, r, back, models.NoticeSuccess, "Password changed successfully.")
}

// loginRetryPath returns the login page, keeping next when it is local
func loginRetryPath(next string) string {
	if !isLocalPath(next) {
		return loginPath
	}
	return loginPath + "?" + url.Values{"next": {next}}.Encode()
}

// isLocalPath reports whether target is a path on this site
func isLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Host == "" && u.Scheme == ""
}
