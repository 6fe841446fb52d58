package handlers

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/filevault/backend/internal/models"
	"go.uber.org/zap"
)

// multipartMemory is the part of an upload kept in memory, the rest goes to temporary files
const multipartMemory = 8 << 20

const fileTooLargeMessage = "File too large."

// FileService is the interface that wraps methods for file operations
type FileService interface {
	// Method Accept validates, stores and records an upload.
	//
	// "originalName" parameter is the client supplied file name, kept verbatim for downloads.
	//
	// Invalid names yield services.ErrEmptyFilename or services.ErrDisallowedExtension.
	Accept(ctx context.Context, r io.Reader, originalName string, uploaderID int) (*models.FileRecord, error)
	// Method Retrieve opens the bytes of a file and returns them with the original file name.
	//
	// If the record or its bytes do not exist, services.ErrFileNotFound is returned.
	Retrieve(ctx context.Context, fileID int) (io.ReadCloser, string, error)
	// Method List returns all files, newest first.
	List(ctx context.Context) ([]models.FileListItem, error)
}

// FileHandler handles the user dashboard, uploads and downloads
type FileHandler struct {
	BaseHandler
	fileService FileService
}

// NewFileHandler creates a new file handler
func NewFileHandler(fileService FileService, sessions SessionManager, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		BaseHandler: BaseHandler{logger: logger, sessions: sessions},
		fileService: fileService,
	}
}

// UserDashboard handles GET /user.
// Admins are sent to the admin dashboard.
func (h *FileHandler) UserDashboard(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.IsAdmin() {
		http.Redirect(w, r, adminDashboardPath, http.StatusFound)
		return
	}

	files, err := h.fileService.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list files", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	h.respondJSON(w, http.StatusOK, models.UserDashboardView{
		Username: sess.Username,
		Files:    files,
		Notices:  h.sessions.Notices(w, r),
	})
}

// Upload handles POST /upload
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	back := dashboardPath(sess.Role)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
			h.redirectWithNotice(w, r, back, models.NoticeError, fileTooLargeMessage)
			return
		}
		h.redirectWithNotice(w, r, back, models.NoticeError, "No file selected.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.redirectWithNotice(w, r, back, models.NoticeError, "No file selected.")
		return
	}
	defer file.Close()

	if _, err := h.fileService.Accept(r.Context(), file, header.Filename, sess.UserID); err != nil {
		h.redirectWithError(w, r, back, err)
		return
	}

	h.redirectWithNotice(w, r, back, models.NoticeSuccess, "File uploaded successfully.")
}

// UploadTooLarge answers uploads whose declared size exceeds the limit
func (h *FileHandler) UploadTooLarge(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	h.logger.Info("upload rejected",
		zap.Int("userId", sess.UserID),
		zap.Int64("contentLength", r.ContentLength),
	)
	h.redirectWithNotice(w, r, dashboardPath(sess.Role), models.NoticeError, fileTooLargeMessage)
}

// Download handles GET /download/{fileID}
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	back := dashboardPath(sess.Role)

	fileID, ok := idParam(r, "fileID")
	if !ok {
		h.redirectWithNotice(w, r, back, models.NoticeError, "File not found.")
		return
	}

	rc, name, err := h.fileService.Retrieve(r.Context(), fileID)
	if err != nil {
		h.redirectWithError(w, r, back, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if f, ok := rc.(interface{ Stat() (fs.FileInfo, error) }); ok {
		if info, err := f.Stat(); err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		}
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", zap.Int("fileId", fileID), zap.Error(err))
	}
}
