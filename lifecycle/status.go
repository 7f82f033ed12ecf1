package lifecycle

import (
	"fmt"
	"strings"
)

// Status is the single active state of an order.
type Status string

const (
	StatusPending           Status = "Pending"
	StatusAccepted          Status = "Accepted"
	StatusOnTheWay          Status = "OnTheWay"
	StatusArrived           Status = "Arrived"
	StatusPickedUp          Status = "Picked Up"
	StatusArrivedAtCustomer Status = "ArrivedAtCustomer"
	StatusDelivered         Status = "Delivered"
	StatusCancelled         Status = "Cancelled"
)

// chain is the main delivery path in transition order. Cancelled sits outside it.
var chain = []Status{
	StatusPending,
	StatusAccepted,
	StatusOnTheWay,
	StatusArrived,
	StatusPickedUp,
	StatusArrivedAtCustomer,
	StatusDelivered,
}

var aliases = map[string]Status{
	"pending":           StatusPending,
	"accepted":          StatusAccepted,
	"confirmed":         StatusAccepted,
	"ontheway":          StatusOnTheWay,
	"on_the_way":        StatusOnTheWay,
	"arrived":           StatusArrived,
	"picked up":         StatusPickedUp,
	"picked_up":         StatusPickedUp,
	"pickedup":          StatusPickedUp,
	"arrivedatcustomer": StatusArrivedAtCustomer,
	"delivered":         StatusDelivered,
	"cancelled":         StatusCancelled,
	"canceled":          StatusCancelled,
}

// Parse maps a wire value to a Status. Matching is case-insensitive and
// accepts "Confirmed" as the legacy name of Accepted.
func Parse(s string) (Status, error) {
	if st, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Rank is the monotonic index of the status along the delivery chain.
// Cancelled ranks above every chain status. Unknown statuses rank -1.
func (s Status) Rank() int {
	for i, st := range chain {
		if st == s {
			return i
		}
	}
	if s == StatusCancelled {
		return len(chain)
	}
	return -1
}

func (s Status) Valid() bool { return s.Rank() >= 0 }

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsOpenAssignment reports whether a rider holding an order in this status
// still has an active delivery.
func (s Status) IsOpenAssignment() bool {
	switch s {
	case StatusOnTheWay, StatusArrived, StatusPickedUp, StatusArrivedAtCustomer:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Advances reports whether incoming should replace current in a local view.
// Terminal statuses are final, Cancelled wins over any open status, and
// otherwise only a strictly higher rank is applied. Re-applying the same
// status is therefore a no-op and an older status never regresses the view.
func Advances(current, incoming Status) bool {
	if !incoming.Valid() {
		return false
	}
	if !current.Valid() {
		return true
	}
	if current.IsTerminal() {
		return false
	}
	if incoming == StatusCancelled {
		return true
	}
	return incoming.Rank() > current.Rank()
}

// Actor is the role issuing a transition.
type Actor string

const (
	ActorCustomer   Actor = "customer"
	ActorRestaurant Actor = "restaurant"
	ActorRider      Actor = "rider"
	ActorSystem     Actor = "system"
)

// ActorForRole maps an account role to the actor it plays on orders.
func ActorForRole(role string) (Actor, bool) {
	switch Actor(strings.ToLower(role)) {
	case ActorCustomer:
		return ActorCustomer, true
	case ActorRestaurant:
		return ActorRestaurant, true
	case ActorRider:
		return ActorRider, true
	case ActorSystem:
		return ActorSystem, true
	}
	return "", false
}

// Describe is the customer-facing line for an order reaching s.
func Describe(s Status, reason string) string {
	switch s {
	case StatusPending:
		return "Your order has been placed"
	case StatusAccepted:
		return "Your order has been accepted by the restaurant"
	case StatusOnTheWay:
		return "A rider is heading to the restaurant"
	case StatusArrived:
		return "Your rider has arrived at the restaurant"
	case StatusPickedUp:
		return "Your order has been picked up"
	case StatusArrivedAtCustomer:
		return "Your rider has arrived"
	case StatusDelivered:
		return "Your order has been delivered. Enjoy your meal!"
	case StatusCancelled:
		if reason == "" {
			return "Your order was cancelled"
		}
		return "Your order was cancelled: " + reason
	}
	return fmt.Sprintf("Your order is now %s", s)
}
