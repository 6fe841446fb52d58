package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Paths handlers redirect to
const (
	loginPath          = "/login"
	userDashboardPath  = "/user"
	adminDashboardPath = "/admin"
)

const genericFailureMessage = "Something went wrong, please try again."

// SessionManager is the interface that wraps the session operations used by handlers
type SessionManager interface {
	// Method Load returns the session bound to the request cookie, if any.
	Load(r *http.Request) (*session.Session, bool)
	// Method Establish binds "user" to a fresh session.
	Establish(w http.ResponseWriter, r *http.Request, user *models.User) error
	// Method Teardown clears all session state.
	Teardown(w http.ResponseWriter, r *http.Request) error
	// Method AddNotice queues a notice for the next rendered view.
	AddNotice(w http.ResponseWriter, r *http.Request, kind models.NoticeKind, message string)
	// Method Notices pops all queued notices.
	Notices(w http.ResponseWriter, r *http.Request) []models.Notice
}

// BaseHandler provides common handler functionality
type BaseHandler struct {
	logger   *zap.Logger
	sessions SessionManager
}

// respondJSON sends a JSON response
func (h *BaseHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error JSON response
func (h *BaseHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// redirectWithNotice queues a notice and redirects to path
func (h *BaseHandler) redirectWithNotice(w http.ResponseWriter, r *http.Request, path string, kind models.NoticeKind, message string) {
	h.sessions.AddNotice(w, r, kind, message)
	http.Redirect(w, r, path, http.StatusFound)
}

// redirectWithError logs unexpected errors and redirects with the matching notice
func (h *BaseHandler) redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	message, known := noticeForError(err)
	if !known {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	h.redirectWithNotice(w, r, path, models.NoticeError, message)
}

// currentSession returns the session placed in the request context by the guard
func currentSession(r *http.Request) *session.Session {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		// routes using this are always behind the login guard
		panic("handlers: session missing from request context")
	}
	return sess
}

// dashboardPath returns the landing page of a role
func dashboardPath(role models.Role) string {
	if role.IsAdmin() {
		return adminDashboardPath
	}
	return userDashboardPath
}

// idParam parses a positive integer URL parameter
func idParam(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// noticeForError maps service errors to user facing messages
func noticeForError(err error) (string, bool) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return "Invalid username or password.", true
	case errors.Is(err, services.ErrEmptyFilename):
		return "No file selected.", true
	case errors.Is(err, services.ErrDisallowedExtension):
		return "File type not allowed.", true
	case errors.Is(err, services.ErrFileNotFound):
		return "File not found.", true
	case errors.Is(err, services.ErrUserNotFound):
		return "User not found.", true
	case errors.Is(err, services.ErrUsernameTaken):
		return "This username already exists.", true
	case errors.Is(err, services.ErrLastAdmin):
		return "At least one admin account must remain.", true
	case errors.Is(err, services.ErrInvalidInput):
		return capitalize(err.Error()) + ".", true
	default:
		return genericFailureMessage, false
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
