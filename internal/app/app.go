// Package app assembles the components of the file vault into an HTTP handler
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/handlers"
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/repositories"
	"github.com/filevault/backend/internal/scheduler"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/session"
	"github.com/filevault/backend/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// adminBootstrapper creates the first admin account
type adminBootstrapper interface {
	EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error)
}

// Storage is a file bytes backend that can also enumerate its content
type Storage interface {
	services.FileStorage
	List(ctx context.Context) ([]storage.Object, error)
}

// App holds the wired application
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	handler   http.Handler
	bootstrap adminBootstrapper
	sweeper   scheduler.Sweeper
}

// New wires repositories, services, sessions and handlers on top of db
func New(ctx context.Context, cfg *config.Config, db *sql.DB, logger *zap.Logger) (*App, error) {
	store, err := NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db, logger)
	fileRepo := repositories.NewFileRepository(db, logger)

	// Initialize services
	authService := services.NewAuthService(userRepo, logger)
	fileService := services.NewFileService(fileRepo, store, &cfg.Upload, logger)
	adminService := services.NewAdminService(userRepo, fileRepo, fileService, logger)
	sweeper := services.NewOrphanSweeper(fileRepo, store, cfg.Maintenance.SweepGrace, logger)

	sessions := session.NewManager(cfg.Session, logger)
	guard := middleware.NewGuard(sessions, userRepo, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, sessions, logger)
	fileHandler := handlers.NewFileHandler(fileService, sessions, logger)
	adminHandler := handlers.NewAdminHandler(adminService, fileService, sessions, logger)

	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(httprate.LimitByIP(cfg.RateLimit.PerMinute, time.Minute))

	// Public routes
	r.Get("/", authHandler.Root)
	r.Get("/login", authHandler.LoginPage)
	r.With(httprate.LimitByIP(cfg.RateLimit.LoginPerMinute, time.Minute)).Post("/login", authHandler.Login)

	// Signed in users
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireLogin)
		r.Get("/logout", authHandler.Logout)
		r.Post("/account/password", authHandler.ChangePassword)
		r.Get("/user", fileHandler.UserDashboard)
		r.With(middleware.RequestSizeLimitMiddleware(cfg.Upload.MaxSize, http.HandlerFunc(fileHandler.UploadTooLarge))).
			Post("/upload", fileHandler.Upload)
		r.Get("/download/{fileID}", fileHandler.Download)
	})

	// Admins
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAdmin)
		r.Get("/admin", adminHandler.Dashboard)
		r.Post("/admin/create_user", adminHandler.CreateUser)
		r.Post("/admin/delete_user/{userID}", adminHandler.DeleteUser)
		r.Post("/admin/update_user/{userID}", adminHandler.UpdateUser)
		r.Post("/admin/delete_file/{fileID}", adminHandler.DeleteFile)
	})

	return &App{
		cfg:       cfg,
		logger:    logger,
		handler:   r,
		bootstrap: adminService,
		sweeper:   sweeper,
	}, nil
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.handler
}

// Bootstrap creates the configured default admin when no admin exists.
// It is safe to call on every start.
func (a *App) Bootstrap(ctx context.Context) error {
	created, err := a.bootstrap.EnsureDefaultAdmin(ctx, a.cfg.Bootstrap.AdminUsername, a.cfg.Bootstrap.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	if created {
		a.logger.Warn("default admin account created, change its password",
			zap.String("username", a.cfg.Bootstrap.AdminUsername),
		)
	}
	return nil
}

// SweepOrphans runs one orphan sweep immediately
func (a *App) SweepOrphans(ctx context.Context) (int, error) {
	return a.sweeper.Sweep(ctx)
}

// StartMaintenance starts the scheduled orphan sweep.
// It returns nil when the sweep is disabled by configuration.
func (a *App) StartMaintenance(ctx context.Context) (*scheduler.Scheduler, error) {
	if !a.cfg.Maintenance.SweepEnabled() {
		a.logger.Info("Orphan sweep disabled")
		return nil, nil
	}

	s, err := scheduler.NewScheduler(a.cfg.Maintenance.SweepSchedule, a.sweeper, a.logger)
	if err != nil {
		return nil, err
	}
	s.Start(ctx)
	return s, nil
}

// NewStorage returns the file bytes backend selected by the configuration
func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal, "":
		local, err := storage.NewLocalStorage(cfg.Upload.Dir)
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.StorageS3:
		s3, err := storage.NewS3Storage(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
