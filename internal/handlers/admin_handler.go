package handlers

import (
	"context"
	"net/http"

	"github.com/filevault/backend/internal/models"
	"go.uber.org/zap"
)

// AdminService is the interface that wraps methods for user management
type AdminService interface {
	// Method ListUsers returns all users ordered by ID.
	ListUsers(ctx context.Context) ([]models.UserListItem, error)
	// Method CreateUser creates a new account.
	//
	// Taken usernames yield services.ErrUsernameTaken, malformed input services.ErrInvalidInput.
	CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	// Method UpdateUser changes the role of a user and, when given, its password.
	//
	// Demoting the last admin yields services.ErrLastAdmin.
	UpdateUser(ctx context.Context, userID int, req *models.UpdateUserRequest) error
	// Method DeleteUser removes the files of a user, then the user.
	//
	// Deleting the last admin yields services.ErrLastAdmin.
	DeleteUser(ctx context.Context, userID int) error
}

// FileManager is the interface that wraps the file operations of the admin dashboard
type FileManager interface {
	// Method List returns all files, newest first.
	List(ctx context.Context) ([]models.FileListItem, error)
	// Method Remove deletes the bytes and the record of a file.
	//
	// It returns false when the file does not exist.
	Remove(ctx context.Context, fileID int) (bool, error)
}

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	BaseHandler
	adminService AdminService
	files        FileManager
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService AdminService, files FileManager, sessions SessionManager, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  BaseHandler{logger: logger, sessions: sessions},
		adminService: adminService,
		files:        files,
	}
}

// Dashboard handles GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	users, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	files, err := h.files.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list files", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	h.respondJSON(w, http.StatusOK, models.AdminDashboardView{
		Username: sess.Username,
		Users:    users,
		Files:    files,
		Notices:  h.sessions.Notices(w, r),
	})
}

// CreateUser handles POST /admin/create_user
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "Invalid form data.")
		return
	}

	req := &models.CreateUserRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
		Role:     models.RoleFromAdminFlag(r.PostForm.Get("is_admin") != ""),
	}

	if _, err := h.adminService.CreateUser(r.Context(), req); err != nil {
		h.redirectWithError(w, r, adminDashboardPath, err)
		return
	}

	h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeSuccess, "User created successfully.")
}

// DeleteUser handles POST /admin/delete_user/{userID}.
// An admin cannot delete the account of their own session.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	userID, ok := idParam(r, "userID")
	if !ok {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "User not found.")
		return
	}

	if userID == sess.UserID {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "You cannot delete your own account.")
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), userID); err != nil {
		h.redirectWithError(w, r, adminDashboardPath, err)
		return
	}

	h.logger.Info("user deleted by admin", zap.Int("adminId", sess.UserID), zap.Int("userId", userID))
	h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeSuccess, "User deleted successfully.")
}

// UpdateUser handles POST /admin/update_user/{userID}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "User not found.")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "Invalid form data.")
		return
	}

	req := &models.UpdateUserRequest{
		Role:     models.RoleFromAdminFlag(r.PostForm.Get("is_admin") != ""),
		Password: r.PostForm.Get("password"),
	}

	if err := h.adminService.UpdateUser(r.Context(), userID, req); err != nil {
		h.redirectWithError(w, r, adminDashboardPath, err)
		return
	}

	h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeSuccess, "User rights updated successfully.")
}

// DeleteFile handles POST /admin/delete_file/{fileID}
func (h *AdminHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := idParam(r, "fileID")
	if !ok {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "File not found.")
		return
	}

	removed, err := h.files.Remove(r.Context(), fileID)
	if err != nil {
		h.redirectWithError(w, r, adminDashboardPath, err)
		return
	}
	if !removed {
		h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeError, "File not found.")
		return
	}

	h.redirectWithNotice(w, r, adminDashboardPath, models.NoticeSuccess, "File deleted successfully.")
}
