package models

// OrderItemLine is one (order, menu item) quantity record the waiter manages.
type OrderItemLine struct {
	LineID       string    `json:"line_id"`
	MenuItemID   string    `json:"menu_item_id"`
	Name         string    `json:"name,omitempty"`
	RequestedQty int       `json:"requested_qty"`
	Note         string    `json:"note,omitempty"`
	Rows         []LineRow `json:"rows,omitempty"`
}

// LineRow is one server row behind a line, oldest first.
type LineRow struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// ServerRows returns the rows behind the line. A line that was never folded
// is its own single row.
func (l OrderItemLine) ServerRows() []LineRow {
	if len(l.Rows) > 0 {
		return l.Rows
	}
	if l.LineID == "" || l.RequestedQty <= 0 {
		return nil
	}
	return []LineRow{{ID: l.LineID, Qty: l.RequestedQty}}
}

// NewestRow is the row most recently added for the menu item.
func (l OrderItemLine) NewestRow() (LineRow, bool) {
	rows := l.ServerRows()
	if len(rows) == 0 {
		return LineRow{}, false
	}
	return rows[len(rows)-1], true
}

// ItemQty is the payload unit for add-items requests.
type ItemQty struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

// FoldLines merges rows that share a menu item. The server may split one menu
// item over several rows once the first one is locked by the kitchen; the
// waiter still sees a single line. Quantities are summed, the first row's id
// is kept as the line id and every row stays listed in Rows, in server order.
// Lines that end up at zero are dropped.
func FoldLines(rows []OrderItemLine) []OrderItemLine {
	out := make([]OrderItemLine, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.MenuItemID == "" {
			continue
		}
		i, ok := index[r.MenuItemID]
		if !ok {
			i = len(out)
			index[r.MenuItemID] = i
			first := r
			first.Rows = nil
			out = append(out, first)
		} else {
			out[i].RequestedQty += r.RequestedQty
			if out[i].Note == "" {
				out[i].Note = r.Note
			}
		}
		out[i].Rows = append(out[i].Rows, r.ServerRows()...)
	}
	kept := out[:0]
	for _, l := range out {
		if l.RequestedQty <= 0 {
			continue
		}
		if len(l.Rows) > 0 {
			l.LineID = l.Rows[0].ID
		}
		kept = append(kept, l)
	}
	return kept
}
