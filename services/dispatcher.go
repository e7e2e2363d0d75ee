package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/utils"
)

// DispatchOptions is the metadata attached to a kitchen notification.
type DispatchOptions struct {
	Note      string
	Priority  bool
	Source    models.Actor
	TableName string
}

// BatchResult reports what a dispatch did. Sent is false when there was
// nothing outstanding.
type BatchResult struct {
	Sent   bool                      `json:"sent"`
	Batch  *models.NotificationBatch `json:"batch,omitempty"`
	Deltas []models.DeltaItem        `json:"deltas"`
}

// NotificationDispatcher packages the pending deltas of an order into a batch
// and submits it. A failed submission changes nothing locally, so retrying
// naturally resends the current deltas under a new batch id.
type NotificationDispatcher struct {
	api     OrderAPI
	ledger  *ItemLedger
	tracker *ProgressTracker
	history *HistoryStore
	newID   func() string
	now     func() time.Time

	mu        sync.Mutex
	inFlight  map[string]bool
	lastBatch map[string]models.NotificationBatch
}

func NewNotificationDispatcher(api OrderAPI, ledger *ItemLedger, tracker *ProgressTracker, history *HistoryStore) *NotificationDispatcher {
	return &NotificationDispatcher{
		api:       api,
		ledger:    ledger,
		tracker:   tracker,
		history:   history,
		newID:     func() string { return uuid.NewString() },
		now:       time.Now,
		inFlight:  make(map[string]bool),
		lastBatch: make(map[string]models.NotificationBatch),
	}
}

// Pending returns the deltas the table would send right now.
func (d *NotificationDispatcher) Pending(tableID string) []models.DeltaItem {
	order, ok := d.ledger.Order(tableID)
	if !ok {
		return []models.DeltaItem{}
	}
	return PendingDeltas(order.Lines, d.tracker.Snapshot(order.ID))
}

func (d *NotificationDispatcher) CanNotify(tableID string) bool {
	return len(d.Pending(tableID)) > 0
}

// LastBatch returns the last batch this device sent for an order.
func (d *NotificationDispatcher) LastBatch(orderID string) (models.NotificationBatch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.lastBatch[orderID]
	return b, ok
}

// Dispatch sends the table's outstanding deltas to the kitchen.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, tableID string, opts DispatchOptions) (BatchResult, error) {
	order, ok := d.ledger.Order(tableID)
	if !ok {
		return BatchResult{Deltas: []models.DeltaItem{}}, validationError("dispatch", ErrNoActiveOrder)
	}

	if !d.claim(order.ID) {
		return BatchResult{Deltas: []models.DeltaItem{}}, validationError("dispatch", ErrDispatchInFlight)
	}
	defer d.release(order.ID)

	snapshot := d.tracker.Snapshot(order.ID)
	deltas := PendingDeltas(order.Lines, snapshot)
	if len(deltas) == 0 {
		return BatchResult{Deltas: deltas}, nil
	}

	source := opts.Source
	if source == "" {
		source = models.ActorWaiter
	}
	tableName := opts.TableName
	if tableName == "" {
		tableName = order.TableName
	}
	batch := models.NotificationBatch{
		BatchID:     d.newID(),
		OrderID:     order.ID,
		TableName:   tableName,
		Items:       deltas,
		Note:        opts.Note,
		Priority:    opts.Priority,
		SourceActor: source,
		CreatedAt:   d.now(),
	}

	if err := d.api.DispatchKitchenNotification(ctx, batch); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order": order.ID,
			"batch": batch.BatchID,
		}).Errorf("Kitchen notification failed: %v", err)
		return BatchResult{Deltas: deltas}, classify("dispatch", err)
	}

	// Optimistically every dispatched item is now notified up to what was
	// requested at dispatch time. The next refetch confirms or corrects it.
	for _, item := range deltas {
		p := snapshot[item.MenuItemID]
		p.MenuItemID = item.MenuItemID
		if p.Notified < 0 {
			p.Notified = 0
		}
		p.Notified += item.Delta
		snapshot[item.MenuItemID] = p
	}
	rows := make([]models.ProgressSnapshot, 0, len(snapshot))
	for _, p := range snapshot {
		rows = append(rows, p)
	}
	d.tracker.Replace(order.ID, rows)

	d.mu.Lock()
	d.lastBatch[order.ID] = batch
	d.mu.Unlock()

	if err := d.history.RecordBatch(batch); err != nil {
		utils.ErrorLogger.Errorf("Error journaling batch: %v", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order": order.ID,
		"batch": batch.BatchID,
		"units": batch.TotalUnits(),
	}).Info("Kitchen notified")

	return BatchResult{Sent: true, Batch: &batch, Deltas: deltas}, nil
}

func (d *NotificationDispatcher) claim(orderID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[orderID] {
		return false
	}
	d.inFlight[orderID] = true
	return true
}

func (d *NotificationDispatcher) release(orderID string) {
	d.mu.Lock()
	delete(d.inFlight, orderID)
	d.mu.Unlock()
}
