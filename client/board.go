package client

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/realtime"
)

// OrderSource fetches the authoritative order list for the signed-in actor.
type OrderSource interface {
	Orders(ctx context.Context) ([]Order, error)
}

// ChangeListener is told about every order whose displayed status changed.
// prev is nil for an order seen for the first time.
type ChangeListener func(prev *Order, cur Order)

// Board is one actor's local view of its orders. Updates from fetches,
// command responses and pushes all go through lifecycle.Advances, so
// duplicates are no-ops and a late, older status never regresses the view.
type Board struct {
	source OrderSource
	viewer Profile
	log    logrus.FieldLogger

	mu        sync.RWMutex
	orders    map[string]Order
	listeners []ChangeListener
	prompts   []string
	prompted  map[string]bool
}

func NewBoard(source OrderSource, viewer Profile, log logrus.FieldLogger) *Board {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Board{
		source:   source,
		viewer:   viewer,
		log:      log,
		orders:   make(map[string]Order),
		prompted: make(map[string]bool),
	}
}

// OnChange registers l. Listeners run on the goroutine that applied the
// update, after the board lock is released.
func (b *Board) OnChange(l ChangeListener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

type change struct {
	prev *Order
	cur  Order
}

func (b *Board) notify(changes []change) {
	if len(changes) == 0 {
		return
	}
	b.mu.RLock()
	ls := append([]ChangeListener(nil), b.listeners...)
	b.mu.RUnlock()
	for _, c := range changes {
		for _, l := range ls {
			l(c.prev, c.cur)
		}
	}
}

// Refresh replaces the board with a fresh fetch.
func (b *Board) Refresh(ctx context.Context) error {
	orders, err := b.source.Orders(ctx)
	if err != nil {
		return err
	}
	b.Replace(orders)
	return nil
}

// Replace merges a full fetch. Orders missing from it are dropped; orders
// the board already shows further along keep their displayed status.
func (b *Board) Replace(orders []Order) {
	b.mu.Lock()
	seen := make(map[string]bool, len(orders))
	var changes []change
	for _, o := range orders {
		seen[o.ID] = true
		if c, ok := b.mergeLocked(o); ok {
			changes = append(changes, c)
		}
	}
	for id := range b.orders {
		if !seen[id] {
			delete(b.orders, id)
		}
	}
	b.mu.Unlock()
	b.notify(changes)
}

// Upsert merges one full order, from a command response or a push.
func (b *Board) Upsert(o Order) {
	b.mu.Lock()
	c, ok := b.mergeLocked(o)
	b.mu.Unlock()
	if ok {
		b.notify([]change{c})
	}
}

// mergeLocked stores o unless the board already shows a more advanced
// status. The same status refreshes the other fields. It reports a change
// when the displayed status moved.
func (b *Board) mergeLocked(o Order) (change, bool) {
	cur, known := b.orders[o.ID]
	if known && cur.Status != o.Status && !lifecycle.Advances(cur.Status, o.Status) {
		return change{}, false
	}
	b.orders[o.ID] = o
	if known && cur.Status == o.Status {
		return change{}, false
	}
	var prev *Order
	if known {
		p := cur
		prev = &p
		b.observeLocked(cur.Status, o)
	}
	return change{prev: prev, cur: o}, true
}

// Apply folds a status push into the board. It reports whether the order
// is known; unknown orders need a Refresh to appear.
func (b *Board) Apply(ev realtime.StatusEvent) bool {
	b.mu.Lock()
	cur, known := b.orders[ev.OrderID]
	if !known {
		b.mu.Unlock()
		return false
	}
	if !lifecycle.Advances(cur.Status, ev.Status) {
		b.mu.Unlock()
		return true
	}
	prev := cur
	next := cur
	next.Status = ev.Status
	if ev.RiderID != nil {
		next.RiderID = ev.RiderID
	}
	if ev.Status == lifecycle.StatusCancelled {
		next.CancelReason = ev.Reason
	}
	if !ev.UpdatedAt.IsZero() {
		next.UpdatedAt = ev.UpdatedAt
	}
	b.orders[ev.OrderID] = next
	b.observeLocked(prev.Status, next)
	b.mu.Unlock()

	b.notify([]change{{prev: &prev, cur: next}})
	return true
}

// observeLocked queues a rating prompt when the viewing customer sees one
// of their orders become Delivered.
func (b *Board) observeLocked(from lifecycle.Status, o Order) {
	if o.Status == lifecycle.StatusDelivered && from != lifecycle.StatusDelivered {
		b.promptLocked(o)
	}
}

func (b *Board) promptLocked(o Order) {
	if b.viewer.Role != string(lifecycle.ActorCustomer) || o.CustomerID != b.viewer.UserID {
		return
	}
	if o.Rating != nil || b.prompted[o.ID] {
		return
	}
	b.prompted[o.ID] = true
	b.prompts = append(b.prompts, o.ID)
}

// RequestRating handles an explicit rating-request push.
func (b *Board) RequestRating(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		o = Order{ID: orderID, CustomerID: b.viewer.UserID, Status: lifecycle.StatusDelivered}
	}
	b.promptLocked(o)
}

// RatingPrompts drains the queue of orders the customer should be asked
// to rate, oldest first.
func (b *Board) RatingPrompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.prompts
	b.prompts = nil
	return out
}

func (b *Board) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Orders lists the board, most recent first.
func (b *Board) Orders() []Order {
	b.mu.RLock()
	out := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	b.mu.RUnlock()
	sortRecent(out)
	return out
}

// Active is the rider's current delivery, if any.
func (b *Board) Active(riderID uint) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.orders {
		if o.RiderID != nil && *o.RiderID == riderID && o.Status.IsOpenAssignment() {
			return o, true
		}
	}
	return Order{}, false
}

// Available lists accepted orders no rider has claimed yet.
func (b *Board) Available() []Order {
	b.mu.RLock()
	var out []Order
	for _, o := range b.orders {
		if o.Status == lifecycle.StatusAccepted && o.RiderID == nil {
			out = append(out, o)
		}
	}
	b.mu.RUnlock()
	sortRecent(out)
	return out
}

func sortRecent(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
