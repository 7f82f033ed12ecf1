package lifecycle

import (
	"fmt"
	"strings"
)

// Transition is one legal edge of the order graph and the actor allowed to take it.
type Transition struct {
	From  Status
	To    Status
	Actor Actor
}

var table = []Transition{
	{From: StatusPending, To: StatusAccepted, Actor: ActorRestaurant},
	{From: StatusPending, To: StatusCancelled, Actor: ActorRestaurant},
	{From: StatusAccepted, To: StatusOnTheWay, Actor: ActorRider},
	{From: StatusOnTheWay, To: StatusArrived, Actor: ActorRider},
	{From: StatusArrived, To: StatusPickedUp, Actor: ActorRider},
	{From: StatusPickedUp, To: StatusArrivedAtCustomer, Actor: ActorRider},
	{From: StatusArrivedAtCustomer, To: StatusDelivered, Actor: ActorRider},
}

type edge struct {
	from, to Status
	actor    Actor
}

var edges = func() map[edge]bool {
	m := make(map[edge]bool, len(table))
	for _, t := range table {
		m[edge{t.From, t.To, t.Actor}] = true
	}
	return m
}()

var allActors = []Actor{ActorCustomer, ActorRestaurant, ActorRider, ActorSystem}

// CanTransition is the single predicate every surface uses to decide whether
// actor may move an order from one status to another. Any actor may cancel a
// non-terminal order.
func CanTransition(from, to Status, actor Actor) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return edges[edge{from, to, actor}]
}

// TransitionError explains why a transition was refused.
type TransitionError struct {
	From  Status
	To    Status
	Actor Actor
}

func (e *TransitionError) Error() string {
	next := Next(e.From, e.Actor)
	allowed := "none"
	if len(next) > 0 {
		parts := make([]string, len(next))
		for i, s := range next {
			parts[i] = string(s)
		}
		allowed = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s cannot move order from %s to %s (allowed: %s)", e.Actor, e.From, e.To, allowed)
}

// Check is CanTransition returning a *TransitionError.
func Check(from, to Status, actor Actor) error {
	if CanTransition(from, to, actor) {
		return nil
	}
	return &TransitionError{From: from, To: to, Actor: actor}
}

// Next lists the statuses actor may move an order to from the given status.
func Next(from Status, actor Actor) []Status {
	var out []Status
	for _, t := range table {
		if t.From == from && t.Actor == actor && t.To != StatusCancelled {
			out = append(out, t.To)
		}
	}
	if CanTransition(from, StatusCancelled, actor) {
		out = append(out, StatusCancelled)
	}
	return out
}

// Transitions returns the full graph, including the implicit cancel edges, for
// documentation and tests.
func Transitions() []Transition {
	out := make([]Transition, 0, len(table)+len(chain)*len(allActors))
	for _, t := range table {
		if t.To != StatusCancelled {
			out = append(out, t)
		}
	}
	for _, from := range chain {
		if from.IsTerminal() {
			continue
		}
		for _, a := range allActors {
			out = append(out, Transition{From: from, To: StatusCancelled, Actor: a})
		}
	}
	return out
}
