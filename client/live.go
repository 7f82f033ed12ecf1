package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/realtime"
)

// Live feeds realtime pushes into a board and a feed. Handlers run on the
// realtime reader goroutine, so refetches it needs are handed to a worker
// and coalesced.
type Live struct {
	rt    *realtime.Client
	board *Board
	feed  *Feed
	log   logrus.FieldLogger

	// OnDish is told about menu changes on the public feed.
	OnDish func(name string, ev realtime.DishEvent)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	refetch chan struct{}
}

func NewLive(rt *realtime.Client, board *Board, feed *Feed, log logrus.FieldLogger) *Live {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Live{rt: rt, board: board, feed: feed, log: log}
}

// Start connects as id and joins the actor's default channels.
func (l *Live) Start(ctx context.Context, id realtime.Identity) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return nil
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	l.refetch = make(chan struct{}, 1)
	go l.worker(wctx, l.done, l.refetch)
	l.mu.Unlock()

	if err := l.rt.Connect(ctx, id); err != nil {
		l.Stop()
		return fmt.Errorf("connect realtime: %w", err)
	}
	for _, ch := range realtime.DefaultChannels(id.Principal()) {
		sub, err := l.rt.Subscribe(ctx, ch)
		if err != nil {
			l.Stop()
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		l.bind(sub)
	}
	return nil
}

func (l *Live) bind(sub *realtime.Subscription) {
	sub.Bind(realtime.EventOrderStatus, l.onStatus)
	sub.Bind(realtime.EventNewOrder, l.onOrder)
	sub.Bind(realtime.EventOrderAvailable, l.onOrder)
	sub.Bind(realtime.EventChatMessage, l.onFeed)
	sub.Bind(realtime.EventNotification, l.onFeed)
	sub.Bind(realtime.EventRatingRequest, l.onRatingRequest)
	sub.Bind(realtime.EventDishPublished, l.onDish)
	sub.Bind(realtime.EventDishUpdated, l.onDish)
}

func (l *Live) onStatus(ev realtime.Event) {
	st, err := realtime.DecodeStatus(ev.Data)
	if err != nil {
		l.log.WithError(err).Warn("dropping malformed order-status")
		return
	}
	if l.feed != nil {
		l.feed.HandleEvent(ev)
	}
	if !l.board.Apply(st) {
		l.requestRefetch()
	}
}

func (l *Live) onOrder(ev realtime.Event) {
	no, err := realtime.DecodeNewOrder(ev.Data)
	if err != nil {
		l.log.WithError(err).WithField("event", ev.Name).Warn("dropping malformed order push")
		return
	}
	l.board.Upsert(no.Order)
	if l.feed != nil {
		l.feed.HandleEvent(ev)
	}
}

func (l *Live) onFeed(ev realtime.Event) {
	if l.feed != nil {
		l.feed.HandleEvent(ev)
	}
}

func (l *Live) onRatingRequest(ev realtime.Event) {
	rr, err := realtime.DecodeRatingRequest(ev.Data)
	if err != nil {
		l.log.WithError(err).Warn("dropping malformed rating-request")
		return
	}
	l.board.RequestRating(rr.OrderID)
}

func (l *Live) onDish(ev realtime.Event) {
	d, err := realtime.DecodeDish(ev.Data)
	if err != nil {
		l.log.WithError(err).WithField("event", ev.Name).Warn("dropping malformed dish push")
		return
	}
	if l.OnDish != nil {
		l.OnDish(ev.Name, d)
	}
}

func (l *Live) requestRefetch() {
	l.mu.Lock()
	ch := l.refetch
	l.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (l *Live) worker(ctx context.Context, done chan struct{}, refetch chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-refetch:
			if err := l.board.Refresh(ctx); err != nil && ctx.Err() == nil {
				l.log.WithError(err).Warn("refetch after unknown order push failed")
			}
		}
	}
}

// Stop disconnects and waits for a pending refetch.
func (l *Live) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done, l.refetch = nil, nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	if err := l.rt.Disconnect(); err != nil {
		l.log.WithError(err).Debug("realtime disconnect")
	}
	cancel()
	<-done
}
