package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/timmy/footfall/internal/logger"
)

// ExportPrefix is the key prefix of every archived export of a job.
func ExportPrefix(jobID string) string {
	return "exports/" + jobID + "/"
}

// Archive keeps exported artifacts in object storage.
type Archive struct {
	store ObjectStorage
	log   *logger.Logger
}

// NewArchive wraps store.
func NewArchive(store ObjectStorage, log *logger.Logger) *Archive {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Archive{store: store, log: log.WithComponent("archive")}
}

// Archive uploads an artifact and returns its URL.
func (a *Archive) Archive(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := a.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	a.log.WithFields(logger.Fields{"key": key, "bytes": len(data)}).Info("Archived export")
	return a.store.URL(key), nil
}

// PurgeJob removes every archived export of a job.
func (a *Archive) PurgeJob(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("job id is required")
	}
	n, err := a.store.DeletePrefix(ctx, ExportPrefix(jobID))
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.WithFields(logger.Fields{logger.FieldJobID: jobID, logger.FieldCount: n}).Info("Purged archived exports")
	}
	return nil
}

// MemoryStorage is an in-process ObjectStorage for development without a bucket.
type MemoryStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryStorage creates an empty store whose URLs start with baseURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{baseURL: strings.TrimSuffix(baseURL, "/"), objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) URL(key string) string {
	return m.baseURL + "/" + key
}

func (m *MemoryStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStorage) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
			n++
		}
	}
	return n, nil
}

// Keys lists stored keys in order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
