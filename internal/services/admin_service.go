package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/repositories"
	"go.uber.org/zap"
)

const maxUsernameLength = 80

// UserFilesRepository is the interface that wraps the file lookup needed when deleting a user
type UserFilesRepository interface {
	// Method GetIDsByUploader retrieves the IDs of all files uploaded by "userID".
	GetIDsByUploader(ctx context.Context, userID int) ([]int, error)
}

// FileRemover is the interface that wraps the removal of a file's bytes and metadata
type FileRemover interface {
	Remove(ctx context.Context, fileID int) (bool, error)
}

// adminService manages user accounts
type adminService struct {
	userRepo    UserRepository
	fileRepo    UserFilesRepository
	fileRemover FileRemover
	logger      *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(userRepo UserRepository, fileRepo UserFilesRepository, fileRemover FileRemover, logger *zap.Logger) *adminService {
	return &adminService{
		userRepo:    userRepo,
		fileRepo:    fileRepo,
		fileRemover: fileRemover,
		logger:      logger,
	}
}

// ListUsers returns all users ordered by ID
func (s *adminService) ListUsers(ctx context.Context) ([]models.UserListItem, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.UserListItem, 0, len(users))
	for _, u := range users {
		items = append(items, models.UserListItem{
			ID:       u.ID,
			Username: u.Username,
			Role:     u.Role,
			IsAdmin:  u.Role.IsAdmin(),
		})
	}
	return items, nil
}

// CreateUser validates the request and creates a new account
func (s *adminService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username is too long", ErrInvalidInput)
	}
	if !validRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidInput)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("user created", zap.Int("userId", user.ID), zap.String("role", user.Role.String()))
	return user, nil
}

// UpdateUser changes the role of a user and, when given, its password.
// Demoting the last admin is rejected.
func (s *adminService) UpdateUser(ctx context.Context, userID int, req *models.UpdateUserRequest) error {
	if userID <= 0 || !validRole(req.Role) {
		return ErrInvalidInput
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.Role.IsAdmin() && !req.Role.IsAdmin() {
		if err := s.ensureOtherAdmin(ctx); err != nil {
			return err
		}
	}

	fields := models.UserUpdate{Role: &req.Role}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return err
		}
		fields.PasswordHash = &hash
	}

	if err := s.userRepo.Update(ctx, userID, fields); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info("user updated",
		zap.Int("userId", userID),
		zap.String("role", req.Role.String()),
		zap.Bool("passwordChanged", fields.PasswordHash != nil),
	)
	return nil
}

// DeleteUser removes the user's files and then the user.
// Deleting the last admin is rejected.
func (s *adminService) DeleteUser(ctx context.Context, userID int) error {
	if userID <= 0 {
		return ErrInvalidInput
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.Role.IsAdmin() {
		if err := s.ensureOtherAdmin(ctx); err != nil {
			return err
		}
	}

	fileIDs, err := s.fileRepo.GetIDsByUploader(ctx, userID)
	if err != nil {
		return err
	}
	for _, fileID := range fileIDs {
		if _, err := s.fileRemover.Remove(ctx, fileID); err != nil {
			return fmt.Errorf("failed to remove file %d of user %d: %w", fileID, userID, err)
		}
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info("user deleted", zap.Int("userId", userID), zap.Int("filesRemoved", len(fileIDs)))
	return nil
}

// EnsureDefaultAdmin creates the bootstrap admin when no admin account exists.
// It reports whether an account was created.
func (s *adminService) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	count, err := s.userRepo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.CreateUser(ctx, &models.CreateUserRequest{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
	}); err != nil {
		return false, fmt.Errorf("failed to create default admin: %w", err)
	}
	return true, nil
}

func (s *adminService) getUser(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ensureOtherAdmin fails with ErrLastAdmin unless more than one admin exists
func (s *adminService) ensureOtherAdmin(ctx context.Context) error {
	count, err := s.userRepo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func validRole(r models.Role) bool {
	return r == models.RoleUser || r == models.RoleAdmin
}
