package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/realtime"
)

// Notification is a feed record. Key identifies the occurrence, so a
// record synthesized from a push and the server's stored copy are one
// record. ServerID is zero until the server copy has been seen.
type Notification struct {
	Key       string
	ServerID  uint
	Type      string
	Title     string
	Message   string
	OrderID   string
	CreatedAt time.Time
	Read      bool
}

type NotificationSource interface {
	Notifications(ctx context.Context) ([]ServerNotification, error)
	MarkNotificationRead(ctx context.Context, id uint) error
}

// Feed is the actor's notification list, most recent first.
type Feed struct {
	source NotificationSource
	viewer Profile
	log    logrus.FieldLogger
	now    func() time.Time

	mu      sync.Mutex
	items   []Notification
	pending map[string]bool // read locally before the server id was known
	wg      sync.WaitGroup
}

func NewFeed(source NotificationSource, viewer Profile, log logrus.FieldLogger) *Feed {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Feed{
		source:  source,
		viewer:  viewer,
		log:     log,
		now:     time.Now,
		pending: make(map[string]bool),
	}
}

func (f *Feed) indexLocked(key string) int {
	for i := range f.items {
		if f.items[i].Key == key {
			return i
		}
	}
	return -1
}

func (f *Feed) sortLocked() {
	sort.SliceStable(f.items, func(i, j int) bool {
		return f.items[i].CreatedAt.After(f.items[j].CreatedAt)
	})
}

func serverKey(n ServerNotification) string {
	if n.Key != "" {
		return n.Key
	}
	return fmt.Sprintf("n-%d", n.ID)
}

// Load merges the server's list into the feed. Records only known locally
// are kept.
func (f *Feed) Load(ctx context.Context) error {
	list, err := f.source.Notifications(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	var toSync []uint
	for _, n := range list {
		if id, ok := f.mergeServerLocked(n); ok {
			toSync = append(toSync, id)
		}
	}
	f.sortLocked()
	f.mu.Unlock()

	for _, id := range toSync {
		f.syncRead(ctx, id)
	}
	return nil
}

// mergeServerLocked stores a server record. It returns the server id when
// a read flag set locally still has to be sent.
func (f *Feed) mergeServerLocked(n ServerNotification) (uint, bool) {
	key := serverKey(n)
	if i := f.indexLocked(key); i >= 0 {
		item := &f.items[i]
		item.ServerID = n.ID
		item.Title, item.Message = n.Title, n.Message
		readLocally := item.Read || f.pending[key]
		delete(f.pending, key)
		item.Read = item.Read || n.Read
		return n.ID, readLocally && !n.Read
	}
	f.items = append(f.items, Notification{
		Key:       key,
		ServerID:  n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		OrderID:   n.OrderID,
		CreatedAt: n.CreatedAt,
		Read:      n.Read,
	})
	return 0, false
}

// HandleEvent folds a realtime push into the feed and reports whether a
// new record was added. Pushes that fail validation are dropped.
func (f *Feed) HandleEvent(ev realtime.Event) bool {
	var rec Notification
	switch ev.Name {
	case realtime.EventNotification:
		n, err := realtime.DecodeNotification(ev.Data)
		if err != nil {
			f.log.WithError(err).Warn("dropping malformed notification")
			return false
		}
		f.mu.Lock()
		before := len(f.items)
		id, needSync := f.mergeServerLocked(ServerNotification{
			ID: n.ID, Type: n.Type, Title: n.Title, Message: n.Message,
			OrderID: n.OrderID, Key: n.Key, CreatedAt: n.CreatedAt,
		})
		added := len(f.items) > before
		f.sortLocked()
		f.mu.Unlock()
		if needSync {
			f.syncRead(context.Background(), id)
		}
		return added

	case realtime.EventOrderStatus:
		st, err := realtime.DecodeStatus(ev.Data)
		if err != nil {
			f.log.WithError(err).Warn("dropping malformed order-status")
			return false
		}
		if !f.concerns(st) {
			return false
		}
		rec = Notification{
			Key:       realtime.StatusKey(st.OrderID, st.Status),
			Type:      "status",
			Title:     "Order update",
			Message:   lifecycle.Describe(st.Status, st.Reason),
			OrderID:   st.OrderID,
			CreatedAt: st.UpdatedAt,
		}

	case realtime.EventNewOrder:
		no, err := realtime.DecodeNewOrder(ev.Data)
		if err != nil {
			f.log.WithError(err).Warn("dropping malformed new-order")
			return false
		}
		rec = Notification{
			Key:       realtime.NewOrderKey(no.Order.ID),
			Type:      "order",
			Title:     "New order",
			Message:   fmt.Sprintf("New order #%s, total %.2f", short(no.Order.ID), no.Order.Total),
			OrderID:   no.Order.ID,
			CreatedAt: no.Order.CreatedAt,
		}

	case realtime.EventChatMessage:
		msg, err := realtime.DecodeChat(ev.Data)
		if err != nil {
			f.log.WithError(err).Warn("dropping malformed chat-message")
			return false
		}
		if msg.SenderID == f.viewer.UserID {
			return false
		}
		rec = Notification{
			Key:       realtime.ChatKey(msg.MessageID),
			Type:      "chat",
			Title:     "New message",
			Message:   msg.Body,
			OrderID:   msg.OrderID,
			CreatedAt: msg.SentAt,
		}

	default:
		return false
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = f.now()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexLocked(rec.Key) >= 0 {
		return false
	}
	f.items = append([]Notification{rec}, f.items...)
	f.sortLocked()
	return true
}

// concerns reports whether a status change is news for the viewer: the
// customer hears about every step, the other parties only about
// cancellations.
func (f *Feed) concerns(st realtime.StatusEvent) bool {
	switch {
	case st.CustomerID == f.viewer.UserID:
		return true
	case st.Status != lifecycle.StatusCancelled:
		return false
	case f.viewer.RestaurantID != 0 && st.RestaurantID == f.viewer.RestaurantID:
		return true
	case st.RiderID != nil && *st.RiderID == f.viewer.UserID:
		return true
	}
	return false
}

// MarkRead flips the record at once and syncs it in the background. A
// failed sync is logged and the local flag stays set.
func (f *Feed) MarkRead(ctx context.Context, key string) bool {
	f.mu.Lock()
	i := f.indexLocked(key)
	if i < 0 {
		f.mu.Unlock()
		return false
	}
	wasRead := f.items[i].Read
	f.items[i].Read = true
	id := f.items[i].ServerID
	if id == 0 {
		f.pending[key] = true
	}
	f.mu.Unlock()

	if !wasRead && id != 0 {
		f.syncRead(ctx, id)
	}
	return true
}

func (f *Feed) syncRead(ctx context.Context, id uint) {
	ctx = context.WithoutCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := f.source.MarkNotificationRead(ctx, id); err != nil {
			f.log.WithError(err).WithField("notification_id", id).Warn("could not sync read flag")
		}
	}()
}

// Wait blocks until background read syncs have finished.
func (f *Feed) Wait() { f.wg.Wait() }

func (f *Feed) Items() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.items...)
}

func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
