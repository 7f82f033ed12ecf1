package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/delivery-app/utils"
)

const redisChannelPrefix = "rt:"

// RedisBroker relays frames through Redis Pub/Sub so that every server
// instance delivers to its own websocket subscribers.
type RedisBroker struct {
	client *redis.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, redisChannelPrefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Start subscribes to every realtime channel and forwards frames to deliver
// until ctx is cancelled or Close is called.
func (b *RedisBroker) Start(ctx context.Context, deliver DeliverFunc) error {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := b.client.PSubscribe(subCtx, redisChannelPrefix+"*")

	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("subscribe realtime channels: %w", err)
	}

	done := make(chan struct{})
	b.mu.Lock()
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	go func() {
		defer close(done)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				channel, found := strings.CutPrefix(msg.Channel, redisChannelPrefix)
				if !found {
					continue
				}
				deliver(channel, []byte(msg.Payload))
			}
		}
	}()

	utils.InfoLogger.WithField("pattern", redisChannelPrefix+"*").Info("Realtime broker subscribed to Redis")
	return nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
