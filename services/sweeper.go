package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/utils"
)

// UnansweredReason is recorded on orders the sweeper cancels.
const UnansweredReason = "restaurant did not respond"

const sweepBatch = 100

// Sweeper cancels Pending orders the restaurant left unanswered past Timeout.
// It acts as the system actor through the same transition path as users.
type Sweeper struct {
	Orders   *OrderService
	Interval time.Duration
	Timeout  time.Duration
	StopChan chan struct{}
	done     chan struct{}
}

func NewSweeper(orders *OrderService, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		Orders:   orders,
		Interval: interval,
		Timeout:  timeout,
		StopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (sw *Sweeper) Start() {
	go func() {
		defer close(sw.done)
		ticker := time.NewTicker(sw.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := sw.Sweep(context.Background()); err != nil {
					utils.ErrorLogger.WithError(err).Error("Order sweep failed")
				}
			case <-sw.StopChan:
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (sw *Sweeper) Stop() {
	close(sw.StopChan)
	<-sw.done
}

// Sweep cancels every overdue Pending order once and reports how many it
// cancelled. Orders that moved on in the meantime are skipped.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := sw.Orders.Now().Add(-sw.Timeout)

	var ids []string
	if err := sw.Orders.DB.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND created_at < ?", lifecycle.StatusPending, cutoff).
		Order("created_at ASC").
		Limit(sweepBatch).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		_, err := sw.Orders.Transition(ctx, TransitionRequest{
			OrderID:        id,
			Role:           string(lifecycle.ActorSystem),
			Status:         string(lifecycle.StatusCancelled),
			Reason:         UnansweredReason,
			ExpectedStatus: string(lifecycle.StatusPending),
		})
		var conflict *ConflictError
		switch {
		case err == nil:
			cancelled++
		case errors.As(err, &conflict):
			continue
		default:
			utils.ErrorLogger.WithError(err).WithField("order_id", id).Warn("Could not cancel unanswered order")
		}
	}

	if cancelled > 0 {
		utils.InfoLogger.WithFields(logrus.Fields{"cancelled": cancelled, "timeout": sw.Timeout}).
			Info("Cancelled unanswered orders")
	}
	return cancelled, nil
}
