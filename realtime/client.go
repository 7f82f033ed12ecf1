package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/delivery-app/utils"
)

var (
	ErrNotConnected = errors.New("realtime: not connected")
	ErrUnauthorized = errors.New("realtime: handshake unauthorized")
)

// SubscriptionError carries the server's refusal of a subscribe frame.
type SubscriptionError struct {
	Channel string
	Reason  string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s: %s", e.Channel, e.Reason)
}

// Event is a frame delivered to a bound handler.
type Event struct {
	Channel string
	Name    string
	Data    json.RawMessage
}

type Handler func(Event)

// Subscription is the handle returned for a joined channel.
type Subscription struct {
	channel string

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func (s *Subscription) Channel() string { return s.channel }

// Bind registers h for event. Handlers for one connection run one at a time
// in arrival order.
func (s *Subscription) Bind(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *Subscription) Unbind(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

func (s *Subscription) dispatch(ev Event) {
	s.mu.RLock()
	hs := append([]Handler(nil), s.handlers[ev.Name]...)
	s.mu.RUnlock()

	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					utils.ErrorLogger.Errorf("realtime handler for %s/%s panicked: %v", ev.Channel, ev.Name, r)
				}
			}()
			h(ev)
		}()
	}
}

type ClientOption func(*Client)

func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

// WithOnClose installs a callback for connections that drop without
// Disconnect being called.
func WithOnClose(fn func(error)) ClientOption {
	return func(c *Client) { c.onClose = fn }
}

// Client is a single realtime connection shared by every screen of an
// actor's session.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	onClose func(error)

	mu       sync.Mutex
	conn     *websocket.Conn
	identity Identity
	done     chan struct{}
	subs     map[string]*Subscription
	pending  map[string]chan error

	writeMu sync.Mutex
}

func NewClient(wsURL string, opts ...ClientOption) *Client {
	c := &Client{
		url:     wsURL,
		dialer:  websocket.DefaultDialer,
		subs:    make(map[string]*Subscription),
		pending: make(map[string]chan error),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity is the session a connection is opened for.
type Identity struct {
	UserID       uint
	Role         string
	RestaurantID uint
	Token        string
}

func (id Identity) Principal() Principal {
	return Principal{UserID: id.UserID, Role: id.Role, RestaurantID: id.RestaurantID}
}

// Connect dials the server. Connecting again with the same identity is a
// no-op; a different identity replaces the current connection.
func (c *Client) Connect(ctx context.Context, id Identity) error {
	c.mu.Lock()
	if c.conn != nil {
		if c.identity == id {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		if err := c.Disconnect(); err != nil {
			utils.ErrorLogger.WithError(err).Warn("Closing previous realtime connection failed")
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", id.Token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("connect realtime: %w", err)
	}

	done := make(chan struct{})
	c.conn = conn
	c.done = done
	c.identity = id
	go c.readLoop(conn, done)
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Subscribe joins channel and waits for the server to acknowledge it.
// Subscribing to an already joined channel returns the existing handle.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if sub, ok := c.subs[channel]; ok {
		c.mu.Unlock()
		return sub, nil
	}
	sub := &Subscription{channel: channel, handlers: make(map[string][]Handler)}
	ack := make(chan error, 1)
	c.subs[channel] = sub
	c.pending[channel] = ack
	conn := c.conn
	c.mu.Unlock()

	if err := c.write(conn, Frame{Action: ActionSubscribe, Channel: channel}); err != nil {
		c.forget(channel)
		return nil, err
	}

	select {
	case err := <-ack:
		if err != nil {
			c.forget(channel)
			return nil, err
		}
		return sub, nil
	case <-ctx.Done():
		c.forget(channel)
		return nil, ctx.Err()
	}
}

// Unsubscribe leaves channel and drops its handlers.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	_, ok := c.subs[channel]
	conn := c.conn
	c.mu.Unlock()
	if !ok {
		return nil
	}
	c.forget(channel)
	if conn == nil {
		return nil
	}
	return c.write(conn, Frame{Action: ActionUnsubscribe, Channel: channel})
}

// Disconnect closes the connection and forgets every subscription. It must
// not be called from inside a Handler.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.done = nil, nil
	c.identity = Identity{}
	c.failPendingLocked(ErrNotConnected)
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := conn.Close()
	<-done
	return err
}

func (c *Client) forget(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, channel)
	delete(c.pending, channel)
}

func (c *Client) failPendingLocked(err error) {
	for ch, ack := range c.pending {
		ack <- err
		delete(c.pending, ch)
	}
}

func (c *Client) write(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("realtime %s %s: %w", f.Action, f.Channel, err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	var readErr error
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			readErr = err
			break
		}
		c.handle(env)
	}

	c.mu.Lock()
	unexpected := c.conn == conn
	if unexpected {
		c.conn, c.done = nil, nil
		c.identity = Identity{}
		c.failPendingLocked(ErrNotConnected)
		c.subs = make(map[string]*Subscription)
	}
	onClose := c.onClose
	c.mu.Unlock()

	if unexpected {
		_ = conn.Close()
		utils.ErrorLogger.WithError(readErr).Warn("Realtime connection lost")
		if onClose != nil {
			onClose(readErr)
		}
	}
}

func (c *Client) handle(env Envelope) {
	switch env.Event {
	case EventSubscribed, EventSubscriptionError:
		var ackErr error
		if env.Event == EventSubscriptionError {
			var body struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(env.Data, &body)
			ackErr = &SubscriptionError{Channel: env.Channel, Reason: body.Error}
		}
		c.mu.Lock()
		ack, ok := c.pending[env.Channel]
		delete(c.pending, env.Channel)
		c.mu.Unlock()
		if ok {
			ack <- ackErr
		}
		return
	}

	c.mu.Lock()
	sub, ok := c.subs[env.Channel]
	c.mu.Unlock()
	if !ok {
		return
	}
	sub.dispatch(Event{Channel: env.Channel, Name: env.Event, Data: env.Data})
}
