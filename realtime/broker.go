package realtime

import (
	"context"
	"sync"
)

// DeliverFunc receives every published frame for a channel.
type DeliverFunc func(channel string, payload []byte)

// Broker fans published frames out to every hub instance.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Start(ctx context.Context, deliver DeliverFunc) error
	Close() error
}

// LocalBroker delivers frames in-process. It serves single-instance
// deployments and tests.
type LocalBroker struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

func (b *LocalBroker) Start(_ context.Context, deliver DeliverFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = deliver
	return nil
}

func (b *LocalBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(channel, payload)
	}
	return nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = nil
	return nil
}
