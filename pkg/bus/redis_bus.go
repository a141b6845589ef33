package bus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus broadcasts chat events over a Redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

type RedisBusConfig struct {
	Addr     string
	Password string
	Channel  string
}

func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "kreatorboard:chat:events"
	}
	return &RedisBus{
		client:  redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		channel: channel,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe consumes events until ctx is done. Malformed payloads are
// skipped; on connection loss the loop re-subscribes.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(Event)) {
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			sub := b.client.Subscribe(ctx, b.channel)
			b.consume(ctx, sub, handler)
			_ = sub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}

func (b *RedisBus) consume(ctx context.Context, sub *redis.PubSub, handler func(Event)) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			handler(event)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
