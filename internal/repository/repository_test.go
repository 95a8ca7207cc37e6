package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/timmy/footfall/internal/domain"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestResumeStore(t *testing.T) {
	ctx := context.Background()
	store := NewResumeStore(NewStateRepository(testDB(t)))

	id, err := store.Load(ctx)
	if err != nil || id != "" {
		t.Fatalf("Load() on empty store = %q, %v", id, err)
	}

	if err := store.Save(ctx, "job-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "job-2"); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if id, _ := store.Load(ctx); id != "job-2" {
		t.Errorf("Load() = %q, want job-2", id)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if id, _ := store.Load(ctx); id != "" {
		t.Errorf("Load() after Clear = %q", id)
	}
	if err := store.Clear(ctx); err != nil {
		t.Errorf("Clear on empty store: %v", err)
	}
}

func TestStateRepositoryNotFound(t *testing.T) {
	repo := NewStateRepository(testDB(t))
	if _, err := repo.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(testDB(t))

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, typ := range []string{"job-completed", "job-cancelled", "job-completed"} {
		n := &domain.Notification{
			ID:        fmt.Sprintf("n-%d", i),
			Type:      typ,
			JobID:     fmt.Sprintf("job-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rows, err := repo.ListSince(ctx, base, 10)
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "n-1" || rows[1].ID != "n-2" {
		t.Errorf("ListSince() = %+v", rows)
	}

	latest, err := repo.Latest(ctx)
	if err != nil || !latest.Equal(base.Add(2*time.Minute)) {
		t.Errorf("Latest() = %v, %v", latest, err)
	}

	removed, err := repo.PruneBefore(ctx, base.Add(90*time.Second))
	if err != nil || removed != 2 {
		t.Errorf("PruneBefore() = %d, %v; want 2", removed, err)
	}
}
