package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveJobKey is the client state key holding the in-flight job's identifier.
const ActiveJobKey = "active_job_id"

// StateRepository stores durable client-side key/value state.
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the value stored under key.
// Returns:
//   - string: stored value.
//   - error: ErrNotFound when the key is absent.
func (r *StateRepository) Get(ctx context.Context, key string) (string, error) {
	var st domain.ClientState
	err := r.db.WithContext(ctx).First(&st, "state_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return st.Value, nil
}

// Set creates or overwrites key.
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	st := domain.ClientState{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&st).Error
}

// Delete removes key. Deleting a missing key is not an error.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&domain.ClientState{}, "state_key = ?", key).Error
}

// ResumeStore persists the identifier of the job being tracked, so a restarted
// client can pick polling back up. Only the active job controller writes it.
type ResumeStore struct {
	repo *StateRepository
	key  string
}

// NewResumeStore binds a ResumeStore to ActiveJobKey.
func NewResumeStore(repo *StateRepository) *ResumeStore {
	return &ResumeStore{repo: repo, key: ActiveJobKey}
}

// Load returns the persisted job ID, or "" when none is stored.
func (s *ResumeStore) Load(ctx context.Context) (string, error) {
	id, err := s.repo.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return id, err
}

// Save persists jobID.
func (s *ResumeStore) Save(ctx context.Context, jobID string) error {
	return s.repo.Set(ctx, s.key, jobID)
}

// Clear removes the persisted job ID.
func (s *ResumeStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key)
}
