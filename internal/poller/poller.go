// Package poller runs one cancellable periodic task per instance.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/footfall/internal/logger"
)

// Func is one poll tick. It receives the loop's context, which is cancelled by Stop.
type Func func(ctx context.Context)

// Poller calls Func on a fixed interval from a single goroutine, so ticks never
// overlap: a tick that outlives the interval makes the ticker drop the missed ticks.
// Starting a Poller that is already running replaces the old loop.
type Poller struct {
	name     string
	interval time.Duration
	fn       Func
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	gen    uint64
}

// New creates a stopped poller.
func New(name string, interval time.Duration, fn Func, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Poller{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.WithField("poller", name),
	}
}

// Start begins ticking. The first tick fires one interval after Start.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.gen++

	go p.loop(ctx, done)
	p.log.Debug("poller started")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.fn(ctx)
		}
	}
}

// Stop cancels the loop without waiting for it to exit, so it is safe to call from
// inside Func. Use Wait to block until the goroutine is gone.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		p.log.Debug("poller stopped")
	}
}

// Wait blocks until the most recently started loop has exited.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Generation counts how many times the poller has been started.
func (p *Poller) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}
