package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/pricing"
)

// Action names carried by ActionError.
const (
	ActionPlaceOrder       = "place-order"
	ActionAccept           = "accept"
	ActionReject           = "reject"
	ActionClaim            = "claim"
	ActionMarkArrived      = "mark-arrived"
	ActionPickUp           = "pick-up"
	ActionArriveAtCustomer = "arrive-at-customer"
	ActionDeliver          = "deliver"
	ActionCancel           = "cancel"
	ActionSendChat         = "send-chat"
	ActionRate             = "rate"
)

// Dispatcher runs the actor's order commands. Each command checks what it
// can locally, sends one request and then refreshes the board. Nothing is
// changed locally before the server has answered and failures are never
// retried.
type Dispatcher struct {
	api      *API
	board    *Board
	prompts  *Prompts
	earnings pricing.EarningConfig
	log      logrus.FieldLogger
}

type DispatcherOption func(*Dispatcher)

// WithPrompts clears the restaurant's incoming-order prompt once the order
// is accepted or rejected.
func WithPrompts(p *Prompts) DispatcherOption {
	return func(d *Dispatcher) { d.prompts = p }
}

// WithEarningConfig sets the formula used when the server does not report
// a delivery's earning.
func WithEarningConfig(cfg pricing.EarningConfig) DispatcherOption {
	return func(d *Dispatcher) { d.earnings = cfg }
}

func WithDispatcherLogger(l logrus.FieldLogger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

func NewDispatcher(api *API, board *Board, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		api:      api,
		board:    board,
		earnings: pricing.DefaultEarningConfig(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) actor(action string) (lifecycle.Actor, error) {
	actor, ok := d.api.Session().Actor()
	if !ok {
		return "", actionError(action, invalid("session", "please sign in first"))
	}
	return actor, nil
}

// PlaceOrder sends c as a new order. The voucher sent is c.VoucherCode;
// use Checkout.Applying to send the one a quote picked.
func (d *Dispatcher) PlaceOrder(ctx context.Context, c Checkout) (Order, error) {
	actor, err := d.actor(ActionPlaceOrder)
	if err != nil {
		return Order{}, err
	}
	if actor != lifecycle.ActorCustomer {
		return Order{}, actionError(ActionPlaceOrder, invalid("role", "only customers can place orders"))
	}
	if err := c.Validate(); err != nil {
		return Order{}, actionError(ActionPlaceOrder, err)
	}

	order, err := d.api.PlaceOrder(ctx, c.request(strings.TrimSpace(c.VoucherCode)))
	if err != nil {
		return Order{}, d.fail(ActionPlaceOrder, "", err)
	}
	d.board.Upsert(order)
	d.refresh(ctx)
	return order, nil
}

func (d *Dispatcher) Accept(ctx context.Context, id string) (Order, error) {
	res, err := d.transition(ctx, ActionAccept, id, StatusUpdate{Status: string(lifecycle.StatusAccepted)})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

// Reject is the restaurant declining a pending order.
func (d *Dispatcher) Reject(ctx context.Context, id, reason string) (Order, error) {
	if strings.TrimSpace(reason) == "" {
		return Order{}, actionError(ActionReject, invalid("reason", "please give a reason"))
	}
	res, err := d.transition(ctx, ActionReject, id, StatusUpdate{
		Status: string(lifecycle.StatusCancelled),
		Reason: strings.TrimSpace(reason),
	})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

// Claim takes an accepted order for the signed-in rider.
func (d *Dispatcher) Claim(ctx context.Context, id string) (Order, error) {
	rider := d.api.Session().Profile().UserID
	if cur, busy := d.board.Active(rider); busy && cur.ID != id {
		return Order{}, actionError(ActionClaim, invalid("order", "finish your current delivery first"))
	}
	res, err := d.transition(ctx, ActionClaim, id, StatusUpdate{Status: string(lifecycle.StatusOnTheWay)})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

// MarkArrived is the rider reaching the restaurant.
func (d *Dispatcher) MarkArrived(ctx context.Context, id string) (Order, error) {
	res, err := d.transition(ctx, ActionMarkArrived, id, StatusUpdate{Status: string(lifecycle.StatusArrived)})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

func (d *Dispatcher) PickUp(ctx context.Context, id string) (Order, error) {
	res, err := d.transition(ctx, ActionPickUp, id, StatusUpdate{Status: string(lifecycle.StatusPickedUp)})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

func (d *Dispatcher) ArriveAtCustomer(ctx context.Context, id string) (Order, error) {
	res, err := d.transition(ctx, ActionArriveAtCustomer, id, StatusUpdate{Status: string(lifecycle.StatusArrivedAtCustomer)})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

// Deliver completes the order and returns the rider's earnings for it,
// along with the refreshed wallet when it could be fetched.
func (d *Dispatcher) Deliver(ctx context.Context, id string, traveledKm float64) (*EarningsSummary, error) {
	if traveledKm < 0 {
		return nil, actionError(ActionDeliver, invalid("traveled_km", "distance cannot be negative"))
	}
	return d.deliver(ctx, id, &traveledKm)
}

// DeliverUnmeasured completes the order when the rider has no measured
// distance. The server then pays on the distance quoted at checkout.
func (d *Dispatcher) DeliverUnmeasured(ctx context.Context, id string) (*EarningsSummary, error) {
	return d.deliver(ctx, id, nil)
}

func (d *Dispatcher) deliver(ctx context.Context, id string, traveledKm *float64) (*EarningsSummary, error) {
	res, err := d.transition(ctx, ActionDeliver, id, StatusUpdate{
		Status:     string(lifecycle.StatusDelivered),
		TraveledKm: traveledKm,
	})
	if err != nil {
		return nil, err
	}

	km := res.Order.TraveledKm
	if traveledKm != nil {
		km = *traveledKm
	}
	summary := summarize(id, res.Earning, d.earnings, km)
	if w, err := d.api.Wallet(ctx); err != nil {
		d.log.WithError(err).Warn("could not refresh wallet after delivery")
	} else {
		summary.Wallet = &w
	}
	return summary, nil
}

// Cancel cancels an order on behalf of any party to it.
func (d *Dispatcher) Cancel(ctx context.Context, id, reason string) (Order, error) {
	if strings.TrimSpace(reason) == "" {
		return Order{}, actionError(ActionCancel, invalid("reason", "please give a reason"))
	}
	res, err := d.transition(ctx, ActionCancel, id, StatusUpdate{
		Status: string(lifecycle.StatusCancelled),
		Reason: strings.TrimSpace(reason),
	})
	if err != nil {
		return Order{}, err
	}
	return res.Order, nil
}

func (d *Dispatcher) SendChat(ctx context.Context, id, body string) (ChatMessage, error) {
	if _, err := d.actor(ActionSendChat); err != nil {
		return ChatMessage{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return ChatMessage{}, actionError(ActionSendChat, invalid("body", "message cannot be empty"))
	}
	msg, err := d.api.SendChat(ctx, id, body)
	if err != nil {
		return ChatMessage{}, d.fail(ActionSendChat, id, err)
	}
	return msg, nil
}

// Rate scores a delivered order from 1 to 5 stars.
func (d *Dispatcher) Rate(ctx context.Context, id string, stars int, comment string) (Order, error) {
	actor, err := d.actor(ActionRate)
	if err != nil {
		return Order{}, err
	}
	if actor != lifecycle.ActorCustomer {
		return Order{}, actionError(ActionRate, invalid("role", "only customers can rate orders"))
	}
	if stars < 1 || stars > 5 {
		return Order{}, actionError(ActionRate, invalid("rating", "rating must be between 1 and 5"))
	}
	if o, known := d.board.Get(id); known {
		if o.Status != lifecycle.StatusDelivered {
			return Order{}, actionError(ActionRate, invalid("order", "only delivered orders can be rated"))
		}
		if o.Rating != nil {
			return Order{}, actionError(ActionRate, invalid("order", "you already rated this order"))
		}
	}

	order, err := d.api.Rate(ctx, id, stars, strings.TrimSpace(comment))
	if err != nil {
		return Order{}, d.fail(ActionRate, id, err)
	}
	d.board.Upsert(order)
	d.refresh(ctx)
	return order, nil
}

// transition checks the move against the board's copy of the order, sends
// it with the status the board shows as the expected one, and folds the
// server's answer back into the board.
func (d *Dispatcher) transition(ctx context.Context, action, id string, u StatusUpdate) (TransitionResult, error) {
	actor, err := d.actor(action)
	if err != nil {
		return TransitionResult{}, err
	}
	to, err := lifecycle.Parse(u.Status)
	if err != nil {
		return TransitionResult{}, actionError(action, invalid("status", err.Error()))
	}
	if o, known := d.board.Get(id); known {
		if err := lifecycle.Check(o.Status, to, actor); err != nil {
			return TransitionResult{}, &ActionError{
				Action:  action,
				Message: fmt.Sprintf("this order is %s and cannot be moved to %s", o.Status, to),
				Err:     err,
			}
		}
		u.ExpectedStatus = string(o.Status)
	}

	res, err := d.api.UpdateStatus(ctx, id, u)
	if err != nil {
		return TransitionResult{}, d.fail(action, id, err)
	}
	d.board.Upsert(res.Order)
	if d.prompts != nil && to != lifecycle.StatusPending {
		d.prompts.Dismiss(id)
	}
	d.refresh(ctx)
	return res, nil
}

// fail turns err into an ActionError. A conflict carries the server's copy
// of the order, which replaces the stale one on the board.
func (d *Dispatcher) fail(action, id string, err error) error {
	log := d.log.WithFields(logrus.Fields{"action": action, "order_id": id})
	var serr *ServerError
	if errors.As(err, &serr) && serr.Status == http.StatusConflict && len(serr.Data) > 0 {
		if o, derr := decodeData[Order](serr.Data); derr == nil && o.ID != "" {
			d.board.Upsert(o)
			log.WithField("status", o.Status).Info("order changed elsewhere, board resynced")
		} else if derr != nil {
			log.WithError(derr).Warn("conflict carried an unreadable order")
		}
	}
	if !errors.Is(err, context.Canceled) {
		log.WithError(err).Warn("order action failed")
	}
	return actionError(action, err)
}

func (d *Dispatcher) refresh(ctx context.Context) {
	if err := d.board.Refresh(ctx); err != nil {
		d.log.WithError(err).Warn("could not refresh orders")
	}
}
