package models

// ProgressSnapshot holds the kitchen's production counters for one menu item
// of an order. The counters come from independent sources, so
// notified >= preparing+ready+served is not guaranteed.
type ProgressSnapshot struct {
	MenuItemID string `json:"menuItemId"`
	Name       string `json:"name,omitempty"`
	Notified   int    `json:"notified"`
	Preparing  int    `json:"preparing"`
	Ready      int    `json:"ready"`
	Served     int    `json:"served"`
	Cooked     int    `json:"cooked"`
}

// Cancellable is the number of notified units that have not entered
// production. Always within [0, Notified].
func (p ProgressSnapshot) Cancellable() int {
	notified := nonNegative(p.Notified)
	c := notified - nonNegative(p.Preparing) - nonNegative(p.Ready) - nonNegative(p.Served)
	if c < 0 {
		return 0
	}
	if c > notified {
		return notified
	}
	return c
}

// MergeProgress sums rows that belong to the same menu item.
func MergeProgress(rows []ProgressSnapshot) map[string]ProgressSnapshot {
	out := make(map[string]ProgressSnapshot, len(rows))
	for _, r := range rows {
		if r.MenuItemID == "" {
			continue
		}
		cur, ok := out[r.MenuItemID]
		if !ok {
			out[r.MenuItemID] = r
			continue
		}
		cur.Notified += r.Notified
		cur.Preparing += r.Preparing
		cur.Ready += r.Ready
		cur.Served += r.Served
		cur.Cooked += r.Cooked
		if cur.Name == "" {
			cur.Name = r.Name
		}
		out[r.MenuItemID] = cur
	}
	return out
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
