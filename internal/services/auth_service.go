package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the interface that wraps methods for users table data access
type UserRepository interface {
	// Method Create inserts a new user and sets its ID.
	//
	// "user" parameter is used to create a new user.
	//
	// If the username is taken, repositories.ErrDuplicateUsername is returned.
	Create(ctx context.Context, user *models.User) error
	// Method GetByUsername retrieves a user by username.
	//
	// If user with such username does not exist, repositories.ErrNotFound is returned.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Method GetByID retrieves a user by ID.
	//
	// If user with such ID does not exist, repositories.ErrNotFound is returned.
	GetByID(ctx context.Context, userID int) (*models.User, error)
	// Method GetAll retrieves all users ordered by ID.
	GetAll(ctx context.Context) ([]models.User, error)
	// Method CountByRole counts users having "role".
	CountByRole(ctx context.Context, role models.Role) (int, error)
	// Method Update applies the non-nil fields of "fields" to the user.
	//
	// If user with such ID does not exist, repositories.ErrNotFound is returned.
	Update(ctx context.Context, userID int, fields models.UserUpdate) error
	// Method Delete deletes a user by ID.
	//
	// If user with such ID does not exist, repositories.ErrNotFound is returned.
	Delete(ctx context.Context, userID int) error
}

// authService verifies credentials and manages own passwords
type authService struct {
	userRepo UserRepository
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo UserRepository, logger *zap.Logger) *authService {
	return &authService{
		userRepo: userRepo,
		logger:   logger,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// getDummyHash returns a hash compared against when the username is unknown,
// so both failure paths spend the same bcrypt work.
func getDummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("filevault-dummy-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate returns the user matching username and password.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *authService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		bcrypt.CompareHashAndPassword(getDummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// ChangePassword replaces the password of userID after checking the current one
func (s *authService) ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password cannot be empty", ErrInvalidInput)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.Update(ctx, userID, models.UserUpdate{PasswordHash: &hash}); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info("password changed", zap.Int("userId", userID))
	return nil
}
