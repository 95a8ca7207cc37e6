package notify

import (
	"context"
	"errors"
)

// Fanout unifies the in-process bus with an optional cross-process backend behind one
// Bus. Same-process subscribers hear events through Local; the remote backend skips
// this process's own events so nothing is delivered twice.
type Fanout struct {
	Local  *MemoryBus
	Remote Bus
	Origin string
}

// NewFanout creates a Fanout. remote may be nil for a single-process setup.
func NewFanout(origin string, remote Bus) *Fanout {
	return &Fanout{Local: NewMemoryBus(), Remote: remote, Origin: origin}
}

// Publish delivers ev locally, then hands it to the remote backend.
func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	ev = stamp(ev)
	ev.Origin = f.Origin
	if err := f.Local.Publish(ctx, ev); err != nil {
		return err
	}
	if f.Remote != nil {
		return f.Remote.Publish(ctx, ev)
	}
	return nil
}

// Subscribe registers h on both backends.
func (f *Fanout) Subscribe(ctx context.Context, h Handler) error {
	if err := f.Local.Subscribe(ctx, h); err != nil {
		return err
	}
	if f.Remote != nil {
		return f.Remote.Subscribe(ctx, h)
	}
	return nil
}

// Close closes both backends.
func (f *Fanout) Close() error {
	err := f.Local.Close()
	if f.Remote != nil {
		err = errors.Join(err, f.Remote.Close())
	}
	return err
}
