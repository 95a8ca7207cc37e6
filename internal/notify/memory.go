package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBus delivers events to subscribers in the same process, synchronously and in
// subscription order.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	closed bool
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]Handler)}
}

// Publish fills in missing ID and timestamp and calls every subscriber.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	ev = stamp(ev)
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

// Subscribe registers h until ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

// Close drops every subscriber.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]Handler)
	return nil
}

// stamp assigns an ID and timestamp to events that lack them.
func stamp(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}
