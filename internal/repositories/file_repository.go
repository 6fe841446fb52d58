package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/filevault/backend/internal/models"
	"go.uber.org/zap"
)

// fileRepository is the file registry backed by the "files" table.
// It only stores the uploader's ID, usernames are joined in at read time.
type fileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *sql.DB, logger *zap.Logger) *fileRepository {
	return &fileRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new file record into the database and sets its ID
func (r *fileRepository) Create(ctx context.Context, file *models.FileRecord) error {
	query := `
		INSERT INTO files (stored_name, original_name, uploaded_by, upload_date, size)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, file.StoredName, file.OriginalName, file.UploaderID, file.UploadedAt, file.Size)
	if err != nil {
		r.logger.Error("failed to create file record", zap.Error(err), zap.String("storedName", file.StoredName))
		return fmt.Errorf("failed to create file record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	file.ID = int(id)
	return nil
}

// GetByID retrieves a file record by ID
func (r *fileRepository) GetByID(ctx context.Context, fileID int) (*models.FileRecord, error) {
	query := `
		SELECT id, stored_name, original_name, uploaded_by, upload_date, size
		FROM files
		WHERE id = ?
		LIMIT 1
	`

	file := &models.FileRecord{}
	err := r.db.QueryRowContext(ctx, query, fileID).Scan(
		&file.ID,
		&file.StoredName,
		&file.OriginalName,
		&file.UploaderID,
		&file.UploadedAt,
		&file.Size,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get file record", zap.Error(err), zap.Int("fileID", fileID))
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}

	return file, nil
}

// GetAllWithUploader retrieves all file records with their uploader's username, newest first
func (r *fileRepository) GetAllWithUploader(ctx context.Context) ([]models.FileWithUploader, error) {
	query := `
		SELECT f.id, f.stored_name, f.original_name, f.uploaded_by, f.upload_date, f.size, u.username
		FROM files f
		JOIN users u ON f.uploaded_by = u.id
		ORDER BY f.upload_date DESC, f.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query files", zap.Error(err))
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	files := []models.FileWithUploader{}
	for rows.Next() {
		var file models.FileWithUploader
		if err := rows.Scan(
			&file.ID,
			&file.StoredName,
			&file.OriginalName,
			&file.UploaderID,
			&file.UploadedAt,
			&file.Size,
			&file.UploaderUsername,
		); err != nil {
			r.logger.Error("failed to scan file", zap.Error(err))
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return files, nil
}

// GetIDsByUploader retrieves the IDs of all files uploaded by the given user
func (r *fileRepository) GetIDsByUploader(ctx context.Context, userID int) ([]int, error) {
	query := `SELECT id FROM files WHERE uploaded_by = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query files by uploader", zap.Error(err), zap.Int("userID", userID))
		return nil, fmt.Errorf("failed to query files by uploader: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			r.logger.Error("failed to scan file id", zap.Error(err))
			return nil, fmt.Errorf("failed to scan file id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// GetAllStoredNames retrieves the stored name of every file record
func (r *fileRepository) GetAllStoredNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stored_name FROM files`)
	if err != nil {
		r.logger.Error("failed to query stored names", zap.Error(err))
		return nil, fmt.Errorf("failed to query stored names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			r.logger.Error("failed to scan stored name", zap.Error(err))
			return nil, fmt.Errorf("failed to scan stored name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return names, nil
}

// Delete deletes a file record by ID.
// A missing record yields ErrNotFound.
func (r *fileRepository) Delete(ctx context.Context, fileID int) error {
	query := `DELETE FROM files WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, fileID)
	if err != nil {
		r.logger.Error("failed to delete file record", zap.Error(err), zap.Int("fileID", fileID))
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
