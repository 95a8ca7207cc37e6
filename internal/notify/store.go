package notify

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/poller"
	"github.com/timmy/footfall/internal/repository"
)

const (
	storeBatchSize = 100
	// storeLag is how far behind the newest row a subscriber rereads for late commits.
	storeLag = 5 * time.Second
)

// StoreBus broadcasts across processes through the notifications table: Publish writes
// a timestamped row and each subscriber polls for rows newer than the last one it saw.
// Rows written by this bus's own origin are skipped.
type StoreBus struct {
	repo      *repository.NotificationRepository
	origin    string
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	pollers map[*poller.Poller]struct{}
}

// NewStoreBus creates a storage-backed bus. A zero retention disables pruning.
func NewStoreBus(repo *repository.NotificationRepository, origin string, interval, retention time.Duration, log *logger.Logger) *StoreBus {
	if log == nil {
		log = logger.GetDefault()
	}
	return &StoreBus{
		repo:      repo,
		origin:    origin,
		interval:  interval,
		retention: retention,
		log:       log.WithComponent("notify-store"),
		pollers:   make(map[*poller.Poller]struct{}),
	}
}

// Publish writes ev as a notification row.
func (b *StoreBus) Publish(ctx context.Context, ev Event) error {
	ev = stamp(ev)
	if ev.Origin == "" {
		ev.Origin = b.origin
	}
	return b.repo.Create(ctx, &domain.Notification{
		ID:        ev.ID,
		Type:      string(ev.Type),
		JobID:     ev.JobID,
		JobName:   ev.JobName,
		Origin:    ev.Origin,
		CreatedAt: ev.Timestamp,
	})
}

// Subscribe delivers rows written after the call, until ctx is cancelled.
//
// The cursor is a created_at timestamp, so a row committed late by another process with
// an older timestamp would fall behind it. Each tick rereads storeLag behind the newest
// row seen and drops ids already delivered; rows later than storeLag are still missed.
func (b *StoreBus) Subscribe(ctx context.Context, h Handler) error {
	floor, err := b.repo.Latest(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	newest := floor
	seen := make(map[string]time.Time)
	tick := func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()

		since := newest.Add(-storeLag)
		if since.Before(floor) {
			since = floor
		}
		for {
			from := since
			rows, err := b.repo.ListSince(ctx, since, storeBatchSize)
			if err != nil {
				if ctx.Err() == nil {
					b.log.WithError(err).Warn("Failed to read notifications")
				}
				return
			}
			for _, row := range rows {
				since = row.CreatedAt
				if row.CreatedAt.After(newest) {
					newest = row.CreatedAt
				}
				if _, ok := seen[row.ID]; ok {
					continue
				}
				seen[row.ID] = row.CreatedAt
				if row.Origin == b.origin {
					continue
				}
				h(Event{
					ID:        row.ID,
					Type:      EventType(row.Type),
					JobID:     row.JobID,
					JobName:   row.JobName,
					Origin:    row.Origin,
					Timestamp: row.CreatedAt,
				})
			}
			if len(rows) < storeBatchSize || !since.After(from) {
				break
			}
		}

		horizon := newest.Add(-storeLag)
		for id, at := range seen {
			if at.Before(horizon) {
				delete(seen, id)
			}
		}
		b.prune(ctx)
	}

	p := poller.New("notify-store", b.interval, tick, b.log)
	b.mu.Lock()
	b.pollers[p] = struct{}{}
	b.mu.Unlock()
	p.Start(ctx)

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		delete(b.pollers, p)
		b.mu.Unlock()
		p.Stop()
	})
	return nil
}

// Subscriptions reports the number of live subscription loops.
func (b *StoreBus) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pollers)
}

func (b *StoreBus) prune(ctx context.Context) {
	if b.retention <= 0 {
		return
	}
	removed, err := b.repo.PruneBefore(ctx, time.Now().UTC().Add(-b.retention))
	if err != nil {
		b.log.WithError(err).Warn("Failed to prune notifications")
		return
	}
	if removed > 0 {
		b.log.WithField(logger.FieldCount, removed).Debug("Pruned notifications")
	}
}

// Close stops every subscription loop.
func (b *StoreBus) Close() error {
	b.mu.Lock()
	pollers := b.pollers
	b.pollers = make(map[*poller.Poller]struct{})
	b.mu.Unlock()
	for p := range pollers {
		p.Stop()
		p.Wait()
	}
	return nil
}
