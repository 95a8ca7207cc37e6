package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/timmy/footfall/internal/logger"
)

// RedisBus broadcasts across processes over a redis pub/sub channel.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

// NewRedisBus connects to addr and verifies the connection.
func NewRedisBus(addr, channel, origin string, log *logger.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "footfall-jobs"
	}
	if log == nil {
		log = logger.GetDefault()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     log.WithComponent("notify-redis"),
		rdb:     rdb,
		channel: channel,
		origin:  origin,
	}, nil
}

// Publish sends ev on the channel.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	ev = stamp(ev)
	if ev.Origin == "" {
		ev.Origin = b.origin
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe forwards channel messages from other origins to h until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, h Handler) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if h == nil {
		return fmt.Errorf("handler required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// ensures the subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.WithError(err).Warn("Bad job event payload")
					continue
				}
				if ev.Origin == b.origin {
					continue
				}
				h(ev)
			}
		}
	}()
	return nil
}

// Close closes the redis client.
func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
