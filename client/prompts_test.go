package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/lifecycle"
)

func TestPromptsExpire(t *testing.T) {
	expired := make(chan Prompt, 1)
	p := NewPrompts(50*time.Millisecond, func(pr Prompt) { expired <- pr })
	defer p.Close()

	require.True(t, p.Show(order("o-1", lifecycle.StatusPending, time.Now())))
	assert.False(t, p.Show(order("o-1", lifecycle.StatusPending, time.Now())), "one prompt per order")
	assert.False(t, p.Show(order("o-2", lifecycle.StatusAccepted, time.Now())))
	assert.False(t, p.Show(order("o-3", lifecycle.StatusPending, time.Now().Add(-time.Minute))), "already past its countdown")

	left, ok := p.Remaining("o-1")
	require.True(t, ok)
	assert.LessOrEqual(t, left, 50*time.Millisecond)

	select {
	case pr := <-expired:
		assert.Equal(t, "o-1", pr.Order.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not expire")
	}
	assert.Empty(t, p.Active())
}

func TestPromptsFollowBoard(t *testing.T) {
	p := NewPrompts(time.Minute, nil)
	defer p.Close()
	b := NewBoard(&fakeOrders{}, Profile{UserID: 5, Role: "restaurant", RestaurantID: 2}, quietLogger())
	p.Watch(b)

	now := time.Now()
	b.Upsert(order("o-1", lifecycle.StatusPending, now))
	b.Upsert(order("o-2", lifecycle.StatusPending, now.Add(time.Second)))
	active := p.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "o-1", active[0].Order.ID, "closest to expiry first")

	b.Apply(statusEvent("o-1", lifecycle.StatusCancelled))
	active = p.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "o-2", active[0].Order.ID)

	p.Dismiss("o-2")
	assert.Empty(t, p.Active())
	_, ok := p.Remaining("o-2")
	assert.False(t, ok)
}
