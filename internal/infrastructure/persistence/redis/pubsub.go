package redis

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/alem-rewards/internal/infrastructure/messaging"
)

// PubSub adapts a go-redis client to messaging.RedisClient.
type PubSub struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewPubSub creates the adapter. Closing it closes only its subscriptions.
func NewPubSub(cache *Cache) *PubSub {
	return &PubSub{client: cache.Client()}
}

var _ messaging.RedisClient = (*PubSub)(nil)

// Publish sends message on channel.
func (p *PubSub) Publish(ctx context.Context, channel string, message string) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe forwards messages until ctx is done or the adapter is closed.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.client.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so no message is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	out := make(chan messaging.RedisMessage, 64)
	go func() {
		defer close(out)
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes every subscription opened by the adapter.
func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for _, s := range p.subs {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.subs = nil
	return first
}
