package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/metrics"
)

const (
	channelPrefix  = "call:"
	channelPattern = "call:*"

	redisMaxRetries     = 3
	redisInitialBackoff = 100 * time.Millisecond
	redisMaxBackoff     = 2 * time.Second
)

// ChannelForRoom returns the pub/sub channel name for a call room.
func ChannelForRoom(roomID string) string {
	return channelPrefix + roomID
}

// RoomForChannel extracts the room id from a delivered channel name.
func RoomForChannel(channel string) string {
	return strings.TrimPrefix(channel, channelPrefix)
}

// RedisBus implements Bus over Redis pub/sub with a pattern subscription on
// the call channel namespace.
type RedisBus struct {
	client *redis.Client

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Type() string { return "redis" }

// Publish sends env to the room's channel with bounded retry.
func (b *RedisBus) Publish(ctx context.Context, roomID string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	channel := ChannelForRoom(roomID)

	operation := func() error {
		return b.client.Publish(ctx, channel, data).Err()
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(redisInitialBackoff),
				backoff.WithMaxInterval(redisMaxBackoff),
			),
			redisMaxRetries,
		),
		ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		metrics.BusPublishRetries.WithLabelValues(b.Type()).Inc()
		log.Warn().Err(err).Str("channel", channel).Dur("next_attempt_in", d).
			Msg("retrying bus publish")
	})
}

// Subscribe installs the pattern subscription and starts the receive loop.
// go-redis re-establishes the underlying connection itself; the loop exits
// when ctx is cancelled or Close is called.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus is closed")
	}
	pubsub := b.client.PSubscribe(ctx, channelPattern)
	b.pubsub = pubsub
	b.mu.Unlock()

	// Confirm the subscription before reporting success so no publish from
	// this process can race ahead of its own subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to confirm pattern subscription: %w", err)
	}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Error().Err(err).Str("channel", msg.Channel).
						Msg("dropping undecodable bus message")
					continue
				}
				handler(RoomForChannel(msg.Channel), env)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
