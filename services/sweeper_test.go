package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/models"
)

func TestSweepCancelsUnansweredOrders(t *testing.T) {
	f := newFixture(t)
	stale := f.place(t)
	fresh := f.place(t)
	answered := f.place(t)
	f.move(t, answered.ID, f.owner, "Accepted")

	old := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id IN ?", []string{stale.ID, answered.ID}).
		Update("created_at", old).Error)

	sw := NewSweeper(f.orders, time.Minute, 10*time.Minute)
	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got models.Order
	require.NoError(t, f.db.First(&got, "id = ?", stale.ID).Error)
	assert.Equal(t, lifecycle.StatusCancelled, got.Status)
	assert.Equal(t, UnansweredReason, got.CancelReason)

	require.NoError(t, f.db.First(&got, "id = ?", fresh.ID).Error)
	assert.Equal(t, lifecycle.StatusPending, got.Status)
	require.NoError(t, f.db.First(&got, "id = ?", answered.ID).Error)
	assert.Equal(t, lifecycle.StatusAccepted, got.Status)

	f.events.AssertCalled(t, "PublishOrderEvent", mock.Anything, mock.MatchedBy(func(ev OrderEvent) bool {
		return ev.OrderID == stale.ID && ev.Actor == lifecycle.ActorSystem && ev.Status == lifecycle.StatusCancelled
	}))

	n, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeperStartStop(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	sw := NewSweeper(f.orders, 10*time.Millisecond, time.Minute)
	sw.Start()
	defer sw.Stop()

	assert.Eventually(t, func() bool {
		var got models.Order
		if err := f.db.First(&got, "id = ?", order.ID).Error; err != nil {
			return false
		}
		return got.Status == lifecycle.StatusCancelled
	}, 2*time.Second, 20*time.Millisecond)
}
