package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/utils"
)

// Refresher refetches server state into the local projections.
type Refresher interface {
	RefreshOrder(ctx context.Context, orderID string) error
	RefreshAll(ctx context.Context) error
}

// VoidPoster shows a kitchen void to the waiter. It reports whether the void
// was new.
type VoidPoster interface {
	PostVoid(ev models.VoidEvent) bool
}

// OrderTracker answers whether this device currently shows an order.
type OrderTracker interface {
	TableOf(orderID string) (string, bool)
}

// EventFeed delivers external events until ctx is done or the feed fails.
type EventFeed interface {
	Run(ctx context.Context, sink func(models.ExternalEvent)) error
}

// ReconciliationListener turns every push event into a refetch. Events are
// treated as hints that something changed, never as data to apply.
type ReconciliationListener struct {
	tracked   OrderTracker
	refresher Refresher
	voids     VoidPoster
}

func NewReconciliationListener(tracked OrderTracker, refresher Refresher, voids VoidPoster) *ReconciliationListener {
	return &ReconciliationListener{tracked: tracked, refresher: refresher, voids: voids}
}

// NewFlowListener wires a listener to a KitchenFlow.
func NewFlowListener(kf *KitchenFlow) *ReconciliationListener {
	return NewReconciliationListener(kf.Ledger(), kf, kf)
}

// OnExternalEvent reconciles one event.
func (rl *ReconciliationListener) OnExternalEvent(ctx context.Context, ev models.ExternalEvent) error {
	log := utils.InfoLogger.WithFields(logrus.Fields{"event": ev.Kind})

	switch ev.Kind {
	case models.EventOrderMerged, models.EventOrderSplit:
		// the set of orders per table changed
		log.Debug("Refetching all orders")
		return rl.refresher.RefreshAll(ctx)

	case models.EventKitchenVoidSynced:
		if ev.Void != nil && rl.voids != nil {
			rl.voids.PostVoid(*ev.Void)
		}
	}

	ids := ev.OrderIDs()
	if len(ids) == 0 {
		if ev.Kind == models.EventOrderChanged {
			return rl.refresher.RefreshAll(ctx)
		}
		log.Debug("Event without order reference ignored")
		return nil
	}

	var errs []error
	all := false
	for _, id := range ids {
		if _, ok := rl.tracked.TableOf(id); !ok {
			if ev.Kind == models.EventOrderChanged && !all {
				all = true
				// may be a new order for one of our tables
				if err := rl.refresher.RefreshAll(ctx); err != nil {
					errs = append(errs, err)
				}
			}
			continue
		}
		log.WithField("order", id).Debug("Refetching order")
		if err := rl.refresher.RefreshOrder(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Consume feeds events from feed into the listener until ctx is done.
func (rl *ReconciliationListener) Consume(ctx context.Context, feed EventFeed) error {
	return feed.Run(ctx, func(ev models.ExternalEvent) {
		if err := rl.OnExternalEvent(ctx, ev); err != nil {
			utils.ErrorLogger.WithField("event", ev.Kind).Errorf("Reconcile failed: %v", err)
		}
	})
}
