package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
	"github.com/ideaforge/ideaforge-backend/internal/utils"
)

const dialTimeout = 5 * time.Second

// SSEBus fans SSE messages out across instances. The notifier publishes
// here; every instance's forwarder (this one included) delivers the message
// to its local hub, so a user connected to any instance sees the event.
type SSEBus interface {
	Publish(ctx context.Context, msg sse.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error
	Close() error
}

type eventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewSSEBus(log *logger.Logger) (SSEBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	busLog := log.With("service", "RedisSSEBus")

	addr := utils.GetEnv("REDIS_ADDR", "", nil)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    utils.GetEnv("REDIS_PASSWORD", "", nil),
		DB:          utils.GetEnvAsInt("REDIS_DB", 0, busLog),
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &eventBus{
		log:     busLog,
		rdb:     rdb,
		channel: utils.GetEnv("REDIS_CHANNEL", "ideaforge.events", busLog),
	}, nil
}

func (b *eventBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	// The hub keys delivery by the message channel (the user id); a message
	// without one would fan out to nobody on every instance.
	if msg.Channel == "" {
		return fmt.Errorf("SSE message has no channel")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode SSE message: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *eventBus) StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// Receive confirms the subscription is live before we report success.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *eventBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(m sse.SSEMessage)) {
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok || m == nil {
				return
			}
			msg, err := decodeMessage(m.Payload)
			if err != nil {
				b.log.Warn("dropping undecodable SSE payload", "error", err)
				continue
			}
			onMsg(msg)
		}
	}
}

func (b *eventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func decodeMessage(payload string) (sse.SSEMessage, error) {
	var msg sse.SSEMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return sse.SSEMessage{}, err
	}
	if msg.Channel == "" {
		return sse.SSEMessage{}, fmt.Errorf("message has no channel")
	}
	return msg, nil
}
