package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendQueueDepth = 64
)

// Hub tracks websocket subscribers per channel and delivers frames handed to
// it by the broker.
type Hub struct {
	broker    Broker
	authorize func(Principal, string) error

	mu       sync.RWMutex
	channels map[string]map[*subscriber]struct{}
}

func NewHub(broker Broker) *Hub {
	if broker == nil {
		broker = NewLocalBroker()
	}
	return &Hub{
		broker:    broker,
		authorize: Authorize,
		channels:  make(map[string]map[*subscriber]struct{}),
	}
}

// Run attaches the hub to its broker.
func (h *Hub) Run(ctx context.Context) error {
	return h.broker.Start(ctx, h.deliver)
}

func (h *Hub) Close() error {
	return h.broker.Close()
}

// Publish sends event with data to everyone subscribed to channel.
func (h *Hub) Publish(ctx context.Context, channel, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Channel: channel, Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return h.broker.Publish(ctx, channel, frame)
}

// SubscriberCount reports how many connections currently listen on channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) deliver(channel string, payload []byte) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.channels[channel]))
	for s := range h.channels[channel] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if !s.enqueue(payload) {
			utils.InfoLogger.WithFields(logrus.Fields{
				"channel": channel,
				"user_id": s.principal.UserID,
			}).Warn("Realtime send queue full, frame dropped")
		}
	}
}

func (h *Hub) join(s *subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.channels[channel] = set
	}
	set[s] = struct{}{}
	s.channels[channel] = struct{}{}
}

func (h *Hub) leave(s *subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, channel)
}

func (h *Hub) leaveLocked(s *subscriber, channel string) {
	if set, ok := h.channels[channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(s.channels, channel)
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	for channel := range s.channels {
		h.leaveLocked(s, channel)
	}
	h.mu.Unlock()
	s.close()
}

// Serve runs the read loop for an upgraded connection and blocks until the
// peer goes away.
func (h *Hub) Serve(conn *websocket.Conn, p Principal) {
	s := &subscriber{
		conn:      conn,
		principal: p,
		send:      make(chan []byte, sendQueueDepth),
		channels:  make(map[string]struct{}),
	}
	go s.writePump()
	defer h.drop(s)

	log := utils.InfoLogger.WithFields(logrus.Fields{"user_id": p.UserID, "role": p.Role})
	log.Info("Realtime client connected")
	defer log.Info("Realtime client disconnected")

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.ErrorLogger.WithError(err).Warn("Realtime read failed")
			}
			return
		}

		switch frame.Action {
		case ActionSubscribe:
			if err := h.authorize(p, frame.Channel); err != nil {
				s.reply(frame.Channel, EventSubscriptionError, map[string]string{"error": err.Error()})
				continue
			}
			h.join(s, frame.Channel)
			s.reply(frame.Channel, EventSubscribed, nil)
		case ActionUnsubscribe:
			h.leave(s, frame.Channel)
		default:
			s.reply(frame.Channel, EventSubscriptionError, map[string]string{"error": "unknown action " + frame.Action})
		}
	}
}

type subscriber struct {
	conn      *websocket.Conn
	principal Principal
	channels  map[string]struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (s *subscriber) enqueue(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *subscriber) reply(channel, event string, data interface{}) {
	env := Envelope{Channel: channel, Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return
		}
		env.Data = raw
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	s.enqueue(frame)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
