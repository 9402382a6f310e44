package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/soundloom/companion-bot/internal/platform/logger"
)

type redisBus struct {
	log           *logger.Logger
	rdb           *goredis.Client
	channelPrefix string
}

func NewRedisBus(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_JOB_CHANNEL_PREFIX"))
	if prefix == "" {
		prefix = "jobs:user:"
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

	return &redisBus{
		log:           log.With("service", "RedisJobBus"),
		rdb:           rdb,
		channelPrefix: prefix,
	}, nil
}

func (b *redisBus) channelFor(userID int64) string {
	return fmt.Sprintf("%s%d", b.channelPrefix, userID)
}

func (b *redisBus) Publish(ctx context.Context, ev JobEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis job bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channelFor(ev.UserID), raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, userID int64) (Subscription, error) {
	if b == nil || b.rdb == nil {
		return nil, fmt.Errorf("redis job bus not initialized")
	}

	sub := b.rdb.Subscribe(ctx, b.channelFor(userID))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan JobEvent, 16)
	go func() {
		defer close(out)
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
				var ev JobEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis job payload", "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					_ = sub.Close()
					return
				}
			}
		}
	}()

	return &redisSubscription{sub: sub, events: out}, nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

type redisSubscription struct {
	sub    *goredis.PubSub
	events chan JobEvent
}

func (s *redisSubscription) Events() <-chan JobEvent { return s.events }

func (s *redisSubscription) Close() error {
	if s == nil || s.sub == nil {
		return nil
	}
	return s.sub.Close()
}
