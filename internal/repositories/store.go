package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/pkg/errors"
)

// ErrCorruptSnapshot is returned when stored data exists but can't be decoded.
var ErrCorruptSnapshot = errors.New("stored searches snapshot is corrupt")

type blobStorage interface {
	// Read returns nil data without error when nothing was written yet.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// SnapshotStore keeps all searches as a single document. Writers must hold
// the store lock for the whole load-modify-save cycle; readers may Load
// without it.
type SnapshotStore struct {
	blob blobStorage
	lock chan struct{}
}

func NewSnapshotStore(blob blobStorage) *SnapshotStore {
	return &SnapshotStore{blob: blob, lock: make(chan struct{}, 1)}
}

func (s *SnapshotStore) Load(ctx context.Context) (models.Snapshot, error) {
	data, err := s.blob.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) == 0 {
		return models.Snapshot{}, nil
	}

	snapshot := models.Snapshot{}
	if err = json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snapshot, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot models.Snapshot) error {
	if snapshot == nil {
		snapshot = models.Snapshot{}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err = s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// WithLock runs fn while holding the global write lock. Waiting for the lock
// is aborted when ctx is done.
func (s *SnapshotStore) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		metrics.StoreTransactions.WithLabelValues("canceled").Inc()
		return ctx.Err()
	}
	defer func() { <-s.lock }()

	if err := fn(ctx); err != nil {
		metrics.StoreTransactions.WithLabelValues("failed").Inc()
		return err
	}
	metrics.StoreTransactions.WithLabelValues("committed").Inc()
	return nil
}
