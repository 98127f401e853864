package redis

import (
	"context"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/messaging"
)

// PubSub adapts the cache client to messaging.RedisClient.
type PubSub struct {
	cache *Cache
}

var _ messaging.RedisClient = (*PubSub)(nil)

// NewPubSub creates the adapter.
func NewPubSub(cache *Cache) *PubSub {
	return &PubSub{cache: cache}
}

// Channel returns the namespaced channel name.
func (p *PubSub) Channel(name string) string {
	return p.cache.Key(PrefixPubSub, name)
}

// Publish implements messaging.RedisClient.
func (p *PubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	return p.cache.client.Publish(ctx, channel, message).Err()
}

// Subscribe implements messaging.RedisClient. The returned channel is closed
// when ctx is cancelled.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.cache.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage, 64)
	go func() {
		defer close(out)
		defer sub.Close()

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

// Close is a no-op; the connection pool belongs to the cache.
func (p *PubSub) Close() error {
	return nil
}
