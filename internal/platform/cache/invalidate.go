package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// DefaultChannel is the pub/sub channel invalidation events travel on.
const DefaultChannel = "ayurdiet:invalidate"

// Invalidator receives the keys of cached views that are now stale.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, keys ...string) error

func (f InvalidatorFunc) Invalidate(ctx context.Context, keys ...string) error {
	return f(ctx, keys...)
}

// Nop discards invalidations.
var Nop Invalidator = InvalidatorFunc(func(context.Context, ...string) error { return nil })

// Fanout delivers to every target and joins their errors. A failing target
// does not stop delivery to the rest.
type Fanout []Invalidator

func (f Fanout) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	var errs []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Invalidate(ctx, keys...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreInvalidator deletes invalidated keys from a Store.
func StoreInvalidator(s Store) Invalidator {
	return InvalidatorFunc(func(ctx context.Context, keys ...string) error {
		if err := s.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("delete cached keys: %w", err)
		}
		return nil
	})
}

// Event is the payload published for each invalidation.
type Event struct {
	Keys []string `json:"keys"`
}

// RedisPublisher announces invalidations on a Redis channel so other
// instances can drop their local copies and notify their clients.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Invalidate(ctx context.Context, keys ...string) error {
	payload, err := json.Marshal(Event{Keys: keys})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Subscribe relays events published on channel to target until ctx is
// cancelled. Malformed payloads are logged and skipped.
func Subscribe(ctx context.Context, client *redis.Client, channel string, target Invalidator, logger zerolog.Logger) error {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed invalidation event")
				continue
			}
			if err := target.Invalidate(ctx, ev.Keys...); err != nil {
				logger.Warn().Err(err).Strs("keys", ev.Keys).Msg("relay invalidation failed")
			}
		}
	}
}
