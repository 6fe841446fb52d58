package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/repositories"
	"github.com/filevault/backend/internal/storage"
	"go.uber.org/zap"
)

// FileRepository is the interface that wraps methods for files table data access
type FileRepository interface {
	// Method Create inserts a new file record and sets its ID.
	Create(ctx context.Context, file *models.FileRecord) error
	// Method GetByID retrieves a file record by ID.
	//
	// If file with such ID does not exist, repositories.ErrNotFound is returned.
	GetByID(ctx context.Context, fileID int) (*models.FileRecord, error)
	// Method GetAllWithUploader retrieves all file records joined with the uploader username, newest first.
	GetAllWithUploader(ctx context.Context) ([]models.FileWithUploader, error)
	// Method Delete deletes a file record by ID.
	//
	// If file with such ID does not exist, repositories.ErrNotFound is returned.
	Delete(ctx context.Context, fileID int) error
}

// FileStorage is the interface that wraps methods for physical file bytes
type FileStorage interface {
	// Method Save writes "r" under "name" and returns the size of the persisted bytes.
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	// Method Open opens the bytes stored under "name".
	//
	// If nothing is stored under "name", storage.ErrNotFound is returned.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Method Delete removes the bytes stored under "name".
	//
	// If nothing is stored under "name", storage.ErrNotFound is returned.
	Delete(ctx context.Context, name string) error
}

// fileService keeps file bytes and file records consistent
type fileService struct {
	fileRepo FileRepository
	storage  FileStorage
	upload   *config.UploadConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewFileService creates a new file service
func NewFileService(fileRepo FileRepository, store FileStorage, upload *config.UploadConfig, logger *zap.Logger) *fileService {
	return &fileService{
		fileRepo: fileRepo,
		storage:  store,
		upload:   upload,
		logger:   logger,
		now:      time.Now,
	}
}

// extension returns the lower-cased text after the last dot of name
func extension(name string) (string, bool) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return "", false
	}
	return strings.ToLower(name[idx+1:]), true
}

// Accept validates and stores an upload, then records it.
// Bytes are written before the record, a failed record removes them again.
func (s *fileService) Accept(ctx context.Context, r io.Reader, originalName string, uploaderID int) (*models.FileRecord, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, ErrEmptyFilename
	}

	ext, ok := extension(originalName)
	if !ok || !s.upload.IsExtensionAllowed(ext) {
		return nil, ErrDisallowedExtension
	}

	now := s.now().UTC()
	storedName := storage.GenerateStoredName(now, storage.SanitizeFilename(originalName))

	size, err := s.storage.Save(ctx, storedName, r)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	record := &models.FileRecord{
		StoredName:   storedName,
		OriginalName: originalName,
		UploaderID:   uploaderID,
		UploadedAt:   now,
		Size:         size,
	}
	if err := s.fileRepo.Create(ctx, record); err != nil {
		if delErr := s.storage.Delete(ctx, storedName); delErr != nil {
			s.logger.Warn("failed to remove orphan file",
				zap.String("storedName", storedName),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.logger.Info("file uploaded",
		zap.Int("fileId", record.ID),
		zap.Int("uploaderId", uploaderID),
		zap.Int64("size", size),
	)
	return record, nil
}

// Retrieve opens the bytes of a file and returns them with the original file name
func (s *fileService) Retrieve(ctx context.Context, fileID int) (io.ReadCloser, string, error) {
	record, err := s.fileRepo.GetByID(ctx, fileID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, "", ErrFileNotFound
	}
	if err != nil {
		return nil, "", err
	}

	rc, err := s.storage.Open(ctx, record.StoredName)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("file record without bytes",
			zap.Int("fileId", fileID),
			zap.String("storedName", record.StoredName),
		)
		return nil, "", ErrFileNotFound
	}
	if err != nil {
		return nil, "", err
	}

	return rc, record.OriginalName, nil
}

// Remove deletes the bytes and then the record of a file.
// Byte removal failures are logged and never stop the record removal.
// It returns false when no record exists.
func (s *fileService) Remove(ctx context.Context, fileID int) (bool, error) {
	record, err := s.fileRepo.GetByID(ctx, fileID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.storage.Delete(ctx, record.StoredName); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Info("file bytes already absent", zap.String("storedName", record.StoredName))
		} else {
			s.logger.Warn("failed to delete file bytes",
				zap.Int("fileId", fileID),
				zap.String("storedName", record.StoredName),
				zap.Error(err),
			)
		}
	}

	if err := s.fileRepo.Delete(ctx, fileID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("file deleted", zap.Int("fileId", fileID))
	return true, nil
}

// List returns all files, newest first
func (s *fileService) List(ctx context.Context) ([]models.FileListItem, error) {
	files, err := s.fileRepo.GetAllWithUploader(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.FileListItem, 0, len(files))
	for _, f := range files {
		items = append(items, models.FileListItem{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			Uploader:     f.UploaderUsername,
			UploadedAt:   f.UploadedAt,
			Size:         f.Size,
			SizeDisplay:  FormatSize(f.Size),
		})
	}
	return items, nil
}
