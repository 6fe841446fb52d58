package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/filevault/backend/internal/storage"
	"go.uber.org/zap"
)

// StoredNameRepository is the interface that wraps the stored name listing of the files table
type StoredNameRepository interface {
	// Method GetAllStoredNames retrieves the stored name of every file record.
	GetAllStoredNames(ctx context.Context) ([]string, error)
}

// ObjectStore is the interface that wraps listing and deletion of stored bytes
type ObjectStore interface {
	// Method List returns every generated stored name present in the backend.
	List(ctx context.Context) ([]storage.Object, error)
	// Method Delete removes the bytes stored under "name".
	Delete(ctx context.Context, name string) error
}

// orphanSweeper removes stored bytes that no file record points at.
// Such bytes are left behind when a record is deleted but its bytes are not.
type orphanSweeper struct {
	fileRepo StoredNameRepository
	store    ObjectStore
	grace    time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrphanSweeper creates a new orphan sweeper.
// Bytes younger than grace are never removed, so an upload whose record is
// not yet committed survives the sweep.
func NewOrphanSweeper(fileRepo StoredNameRepository, store ObjectStore, grace time.Duration, logger *zap.Logger) *orphanSweeper {
	return &orphanSweeper{
		fileRepo: fileRepo,
		store:    store,
		grace:    grace,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep deletes orphaned bytes and returns how many were removed.
// A failed delete is logged and does not stop the sweep.
func (s *orphanSweeper) Sweep(ctx context.Context) (int, error) {
	// Objects are listed before records so that a record committed in between is still seen
	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}

	names, err := s.fileRepo.GetAllStoredNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list file records: %w", err)
	}
	referenced := make(map[string]struct{}, len(names))
	for _, name := range names {
		referenced[name] = struct{}{}
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, obj := range objects {
		if _, ok := referenced[obj.Name]; ok || obj.ModTime.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		err := s.store.Delete(ctx, obj.Name)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to delete orphaned file", zap.String("storedName", obj.Name), zap.Error(err))
			continue
		}
		s.logger.Info("orphaned file deleted", zap.String("storedName", obj.Name), zap.Time("modTime", obj.ModTime))
		removed++
	}

	return removed, nil
}
