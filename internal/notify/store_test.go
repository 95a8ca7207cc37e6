package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
	"github.com/timmy/footfall/internal/repository"
)

func testRepo(t *testing.T) *repository.NotificationRepository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return repository.NewNotificationRepository(db)
}

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestStoreBusCrossOrigin(t *testing.T) {
	repo := testRepo(t)
	log := logger.Discard()
	a := NewStoreBus(repo, "proc-a", 10*time.Millisecond, 0, log)
	b := NewStoreBus(repo, "proc-b", 10*time.Millisecond, 0, log)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fromA := make(chan Event, 4)
	fromB := make(chan Event, 4)
	if err := a.Subscribe(ctx, func(ev Event) { fromA <- ev }); err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	if err := b.Subscribe(ctx, func(ev Event) { fromB <- ev }); err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}

	if err := a.Publish(ctx, Event{Type: JobCompleted, JobID: "job-1", JobName: "lobby.mp4"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ev := waitFor(t, fromB)
	if ev.Type != JobCompleted || ev.JobID != "job-1" || ev.JobName != "lobby.mp4" || ev.Origin != "proc-a" {
		t.Errorf("b received %+v", ev)
	}

	// give a's loop a few ticks to prove it skips its own row
	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-fromA:
		t.Errorf("publisher received its own event %+v", ev)
	default:
	}
}

func TestStoreBusSkipsHistory(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	old := &domain.Notification{
		ID: "old", Type: string(JobCompleted), JobID: "job-0", Origin: "proc-x",
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := NewStoreBus(repo, "proc-b", 10*time.Millisecond, 0, logger.Discard())
	defer b.Close()

	got := make(chan Event, 4)
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := b.Subscribe(sctx, func(ev Event) { got <- ev }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-got:
		t.Errorf("replayed a notification from before Subscribe: %+v", ev)
	default:
	}
}

func TestStoreBusPrunesExpiredRows(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	stale := &domain.Notification{
		ID: "stale", Type: string(JobCancelled), JobID: "job-9", Origin: "proc-x",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := NewStoreBus(repo, "proc-b", 10*time.Millisecond, time.Hour, logger.Discard())
	defer b.Close()
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := b.Subscribe(sctx, func(Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		latest, err := repo.Latest(ctx)
		if err == nil && latest.IsZero() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("stale notification was not pruned")
}

func TestStoreBusDeliversLateCommits(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	b := NewStoreBus(repo, "proc-b", 10*time.Millisecond, 0, logger.Discard())
	defer b.Close()

	got := make(chan Event, 8)
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := b.Subscribe(sctx, func(ev Event) { got <- ev }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	now := time.Now().UTC()
	first := &domain.Notification{
		ID: "first", Type: string(JobCompleted), JobID: "job-1", Origin: "proc-x", CreatedAt: now,
	}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ev := waitFor(t, got); ev.ID != "first" {
		t.Fatalf("got %+v, want first", ev)
	}

	// committed after "first" but stamped before it
	late := &domain.Notification{
		ID: "late", Type: string(JobCancelled), JobID: "job-2", Origin: "proc-x", CreatedAt: now.Add(-time.Second),
	}
	if err := repo.Create(ctx, late); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ev := waitFor(t, got); ev.ID != "late" || ev.JobID != "job-2" {
		t.Fatalf("got %+v, want late", ev)
	}

	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-got:
		t.Errorf("redelivered %+v", ev)
	default:
	}
}

func TestStoreBusDropsEndedSubscriptions(t *testing.T) {
	repo := testRepo(t)
	b := NewStoreBus(repo, "proc-b", 10*time.Millisecond, 0, logger.Discard())
	defer b.Close()

	keep, cancelKeep := context.WithCancel(context.Background())
	defer cancelKeep()
	if err := b.Subscribe(keep, func(Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		if err := b.Subscribe(ctx, func(Event) {}); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		cancel()
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Subscriptions() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Subscriptions() = %d, want 1", b.Subscriptions())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
