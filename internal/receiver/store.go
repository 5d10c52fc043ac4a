package receiver

import (
	"context"
	"sync"

	"github.com/jmgilman/go/errors"

	"github.com/fruitsalade/projectfs/internal/config"
	"github.com/fruitsalade/projectfs/pkg/protocol"
)

// SnapshotStore keeps the latest pushed tree per project.
type SnapshotStore interface {
	Put(ctx context.Context, snap *protocol.SnapshotResponse) error
	Get(ctx context.Context, projectID string) (*protocol.SnapshotResponse, error)
	Close() error
}

func snapshotNotFound(projectID string) error {
	return errors.WithContext(
		errors.Newf(errors.CodeNotFound, "no snapshot for project %s", projectID),
		"project_id", projectID,
	)
}

// MemoryStore is a process-local SnapshotStore.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*protocol.SnapshotResponse
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*protocol.SnapshotResponse)}
}

func (m *MemoryStore) Put(_ context.Context, snap *protocol.SnapshotResponse) error {
	c := *snap
	m.mu.Lock()
	m.snaps[snap.ProjectID] = &c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, projectID string) (*protocol.SnapshotResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[projectID]
	if !ok {
		return nil, snapshotNotFound(projectID)
	}
	c := *snap
	return &c, nil
}

func (m *MemoryStore) Close() error { return nil }

// OpenStore creates the snapshot backend named by cfg.SnapshotBackend.
func OpenStore(ctx context.Context, cfg config.Receiver) (SnapshotStore, error) {
	switch cfg.SnapshotBackend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		store, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3Store(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}
