package services

import (
	"sort"

	"github.com/yeremiapane/waiter-pos/models"
)

// PendingDeltas lists, per line, the units requested but not yet notified to
// the kitchen. Lines where notified has caught up (or overtaken the request
// after a cancellation) contribute nothing. The result is sorted by menu item
// so identical state always yields an identical batch.
func PendingDeltas(lines []models.OrderItemLine, progress map[string]models.ProgressSnapshot) []models.DeltaItem {
	out := make([]models.DeltaItem, 0, len(lines))
	for _, line := range lines {
		notified := progress[line.MenuItemID].Notified
		if notified < 0 {
			notified = 0
		}
		delta := line.RequestedQty - notified
		if delta <= 0 {
			continue
		}
		out = append(out, models.DeltaItem{MenuItemID: line.MenuItemID, Delta: delta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MenuItemID < out[j].MenuItemID })
	return out
}
