package services

import (
	"sync"

	"github.com/yeremiapane/waiter-pos/models"
)

// ProgressTracker caches the kitchen progress of each order. Its only write
// is a full replace: it never applies increments itself.
type ProgressTracker struct {
	mu     sync.RWMutex
	orders map[string]map[string]models.ProgressSnapshot
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{orders: make(map[string]map[string]models.ProgressSnapshot)}
}

// Replace swaps the cached snapshot of an order for rows.
func (pt *ProgressTracker) Replace(orderID string, rows []models.ProgressSnapshot) {
	merged := models.MergeProgress(rows)
	pt.mu.Lock()
	pt.orders[orderID] = merged
	pt.mu.Unlock()
}

// Forget drops an order, e.g. once it is paid.
func (pt *ProgressTracker) Forget(orderID string) {
	pt.mu.Lock()
	delete(pt.orders, orderID)
	pt.mu.Unlock()
}

// Snapshot returns a copy of the order's progress keyed by menu item.
func (pt *ProgressTracker) Snapshot(orderID string) map[string]models.ProgressSnapshot {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	src := pt.orders[orderID]
	out := make(map[string]models.ProgressSnapshot, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Rows returns the snapshot as a slice, for building a replacement.
func (pt *ProgressTracker) Rows(orderID string) []models.ProgressSnapshot {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	src := pt.orders[orderID]
	out := make([]models.ProgressSnapshot, 0, len(src))
	for _, v := range src {
		out = append(out, v)
	}
	return out
}

func (pt *ProgressTracker) Get(orderID, menuItemID string) models.ProgressSnapshot {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	p, ok := pt.orders[orderID][menuItemID]
	if !ok {
		return models.ProgressSnapshot{MenuItemID: menuItemID}
	}
	return p
}

func (pt *ProgressTracker) Notified(orderID, menuItemID string) int {
	n := pt.Get(orderID, menuItemID).Notified
	if n < 0 {
		return 0
	}
	return n
}

func (pt *ProgressTracker) Cancellable(orderID, menuItemID string) int {
	return pt.Get(orderID, menuItemID).Cancellable()
}
