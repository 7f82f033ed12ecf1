package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = append(append([]Status{}, chain...), StatusCancelled)

func TestParse(t *testing.T) {
	cases := map[string]Status{
		"Pending":   StatusPending,
		"confirmed": StatusAccepted,
		"Accepted":  StatusAccepted,
		"Picked Up": StatusPickedUp,
		"picked_up": StatusPickedUp,
		"CANCELLED": StatusCancelled,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("Teleported")
	assert.Error(t, err)
}

func TestRankIsMonotonicAlongChain(t *testing.T) {
	for i := 1; i < len(chain); i++ {
		assert.Greater(t, chain[i].Rank(), chain[i-1].Rank())
	}
	assert.Greater(t, StatusCancelled.Rank(), StatusDelivered.Rank())
	assert.Equal(t, -1, Status("nope").Rank())
}

func TestCanTransitionMatchesTable(t *testing.T) {
	type key struct {
		actor    Actor
		from, to string
	}
	legal := map[key]bool{
		{ActorRestaurant, "Pending", "Accepted"}:       true,
		{ActorRider, "Accepted", "OnTheWay"}:           true,
		{ActorRider, "OnTheWay", "Arrived"}:            true,
		{ActorRider, "Arrived", "Picked Up"}:           true,
		{ActorRider, "Picked Up", "ArrivedAtCustomer"}: true,
		{ActorRider, "ArrivedAtCustomer", "Delivered"}: true,
	}
	open := []string{"Pending", "Accepted", "OnTheWay", "Arrived", "Picked Up", "ArrivedAtCustomer"}
	for _, actor := range []Actor{"customer", "restaurant", "rider", "system"} {
		for _, from := range open {
			legal[key{actor, from, "Cancelled"}] = true
		}
	}

	statuses := append(append([]string{}, open...), "Delivered", "Cancelled")
	for _, from := range statuses {
		for _, to := range statuses {
			for _, actor := range []Actor{"customer", "restaurant", "rider", "system"} {
				want := legal[key{actor, from, to}]
				got := CanTransition(Status(from), Status(to), actor)
				assert.Equal(t, want, got, "%s: %s -> %s", actor, from, to)
			}
		}
	}
}

func TestRiderChain(t *testing.T) {
	steps := []Status{StatusAccepted, StatusOnTheWay, StatusArrived, StatusPickedUp, StatusArrivedAtCustomer, StatusDelivered}
	for i := 0; i+1 < len(steps); i++ {
		assert.True(t, CanTransition(steps[i], steps[i+1], ActorRider))
		assert.False(t, CanTransition(steps[i], steps[i+1], ActorRestaurant))
		assert.False(t, CanTransition(steps[i], steps[i+1], ActorCustomer))
	}
	// no skipping ahead
	assert.False(t, CanTransition(StatusOnTheWay, StatusPickedUp, ActorRider))
	// no going back
	assert.False(t, CanTransition(StatusPickedUp, StatusArrived, ActorRider))
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range allStatuses {
		for _, actor := range allActors {
			assert.Equal(t, !from.IsTerminal(), CanTransition(from, StatusCancelled, actor), "%s from %s", actor, from)
		}
	}
}

func TestCheckReturnsTransitionError(t *testing.T) {
	err := Check(StatusPending, StatusOnTheWay, ActorRider)
	require.Error(t, err)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusPending, te.From)
	assert.Contains(t, err.Error(), "allowed: Cancelled")

	assert.NoError(t, Check(StatusPending, StatusAccepted, ActorRestaurant))
}

func TestNext(t *testing.T) {
	assert.Equal(t, []Status{StatusAccepted, StatusCancelled}, Next(StatusPending, ActorRestaurant))
	assert.Equal(t, []Status{StatusCancelled}, Next(StatusPending, ActorRider))
	assert.Empty(t, Next(StatusDelivered, ActorRider))
}

func TestAdvances(t *testing.T) {
	tests := []struct {
		name     string
		current  Status
		incoming Status
		want     bool
	}{
		{"forward", StatusAccepted, StatusOnTheWay, true},
		{"skip forward", StatusAccepted, StatusPickedUp, true},
		{"duplicate", StatusArrived, StatusArrived, false},
		{"regression", StatusDelivered, StatusPickedUp, false},
		{"older after newer", StatusPickedUp, StatusOnTheWay, false},
		{"cancel open", StatusPickedUp, StatusCancelled, true},
		{"cancel after delivered", StatusDelivered, StatusCancelled, false},
		{"delivered after cancel", StatusCancelled, StatusDelivered, false},
		{"unknown current", Status(""), StatusPending, true},
		{"unknown incoming", StatusPending, Status("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Advances(tt.current, tt.incoming))
		})
	}
}

func TestActorForRole(t *testing.T) {
	a, ok := ActorForRole("Rider")
	assert.True(t, ok)
	assert.Equal(t, ActorRider, a)

	_, ok = ActorForRole("admin")
	assert.False(t, ok)
}
