package repository

import (
	"context"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"gorm.io/gorm"
)

// NotificationRepository stores broadcast job events for other processes.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListSince returns notifications created strictly after since, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - since: exclusive lower bound on created_at.
//   - limit: maximum number of rows.
//
// Returns:
//   - []domain.Notification: matching rows.
//   - error: non-nil if the query fails.
func (r *NotificationRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := r.db.WithContext(ctx).
		Where("created_at > ?", since).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Latest returns the newest notification timestamp, or the zero time when empty.
func (r *NotificationRepository) Latest(ctx context.Context) (time.Time, error) {
	var n domain.Notification
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(1).Find(&n).Error
	if err != nil {
		return time.Time{}, err
	}
	return n.CreatedAt, nil
}

// PruneBefore deletes notifications older than cutoff and returns how many were removed.
func (r *NotificationRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}
