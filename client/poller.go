package client

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PollInterval is the fallback refresh period. Pushes are the primary
// update path; the poll only catches what a dropped connection missed.
const PollInterval = 60 * time.Second

// Poller refreshes the board and the feed on a fixed interval.
type Poller struct {
	Board    *Board
	Feed     *Feed
	Interval time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(board *Board, feed *Feed, interval time.Duration, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = PollInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{Board: board, Feed: feed, Interval: interval, log: log}
}

// Start runs the loop until ctx ends or Stop is called. Starting a running
// poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Poll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(p.done)
}

// Stop ends the loop and waits for an in-flight poll.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Poll refreshes once. Failures are logged; the next tick tries again.
func (p *Poller) Poll(ctx context.Context) {
	if p.Board != nil {
		if err := p.Board.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Warn("fallback order refresh failed")
		}
	}
	if p.Feed != nil {
		if err := p.Feed.Load(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Warn("fallback notification refresh failed")
		}
	}
}
