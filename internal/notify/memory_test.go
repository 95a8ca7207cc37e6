package notify

import (
	"context"
	"testing"
)

func TestMemoryBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		if err := bus.Subscribe(ctx, func(ev Event) { got = append(got, name+":"+ev.JobID) }); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	if err := bus.Publish(ctx, Event{Type: JobCompleted, JobID: "j1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"first:j1", "second:j1", "third:j1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryBusStampsEvents(t *testing.T) {
	bus := NewMemoryBus()
	var ev Event
	_ = bus.Subscribe(context.Background(), func(e Event) { ev = e })
	_ = bus.Publish(context.Background(), Event{Type: JobCancelled, JobID: "j2"})

	if ev.ID == "" {
		t.Error("expected an event ID")
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
	if ev.Type != JobCancelled {
		t.Errorf("Type = %q", ev.Type)
	}
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	calls := 0
	_ = bus.Subscribe(context.Background(), func(Event) { calls++ })
	_ = bus.Close()
	_ = bus.Publish(context.Background(), Event{Type: JobCompleted})
	if calls != 0 {
		t.Errorf("handler called %d times after Close", calls)
	}
}

func TestFanoutLocalOnly(t *testing.T) {
	f := NewFanout("proc-a", nil)
	var got Event
	_ = f.Subscribe(context.Background(), func(e Event) { got = e })
	if err := f.Publish(context.Background(), Event{Type: JobCompleted, JobID: "j3", JobName: "mall.mp4"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.JobID != "j3" || got.Origin != "proc-a" {
		t.Errorf("got %+v", got)
	}
}

type recordingBus struct {
	published []Event
	closed    bool
}

func (r *recordingBus) Publish(_ context.Context, ev Event) error {
	r.published = append(r.published, ev)
	return nil
}
func (r *recordingBus) Subscribe(context.Context, Handler) error { return nil }
func (r *recordingBus) Close() error {
	r.closed = true
	return nil
}

func TestFanoutForwardsToRemote(t *testing.T) {
	remote := &recordingBus{}
	f := NewFanout("proc-a", remote)

	local := 0
	_ = f.Subscribe(context.Background(), func(Event) { local++ })
	_ = f.Publish(context.Background(), Event{Type: JobCancelled, JobID: "j4"})

	if local != 1 {
		t.Errorf("local deliveries = %d, want 1", local)
	}
	if len(remote.published) != 1 || remote.published[0].Origin != "proc-a" {
		t.Fatalf("remote got %+v", remote.published)
	}
	if remote.published[0].ID == "" {
		t.Error("remote event should carry the same stamped ID")
	}
	_ = f.Close()
	if !remote.closed {
		t.Error("Close should close the remote backend")
	}
}
