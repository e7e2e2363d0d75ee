package services

import (
	"sort"
	"sync"

	"github.com/yeremiapane/waiter-pos/models"
)

// ItemLedger holds, per table, the waiter's current view of the active order:
// how many units of each menu item are requested. It is replaced wholesale on
// every refetch.
//
// Two kinds of local change sit on top of the server copy until then. Adjust
// records a write the server already accepted. Hold records a unit whose add
// is still in flight; held units are shown to the waiter but are never part
// of Order, so they cannot be sent to the kitchen before the server has them.
type ItemLedger struct {
	mu      sync.RWMutex
	byTable map[string]*models.Order
	tableOf map[string]string

	// tables whose row breakdown no longer matches the quantities
	dirty map[string]bool
	held  map[string]map[string]int
}

func NewItemLedger() *ItemLedger {
	return &ItemLedger{
		byTable: make(map[string]*models.Order),
		tableOf: make(map[string]string),
		dirty:   make(map[string]bool),
		held:    make(map[string]map[string]int),
	}
}

// Replace installs the server's copy of an order. Terminal orders are dropped.
func (l *ItemLedger) Replace(order models.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.byTable[order.TableID]; ok && prev.ID != order.ID {
		delete(l.tableOf, prev.ID)
	}
	delete(l.dirty, order.TableID)
	if order.IsTerminal() {
		delete(l.byTable, order.TableID)
		delete(l.tableOf, order.ID)
		delete(l.held, order.TableID)
		return
	}

	cp := order
	cp.Lines = append([]models.OrderItemLine(nil), order.Lines...)
	l.byTable[order.TableID] = &cp
	l.tableOf[order.ID] = order.TableID
}

// ForgetOrder drops the order wherever it is tracked.
func (l *ItemLedger) ForgetOrder(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tableID, ok := l.tableOf[orderID]; ok {
		delete(l.byTable, tableID)
		delete(l.dirty, tableID)
		delete(l.held, tableID)
	}
	delete(l.tableOf, orderID)
}

// Order returns a copy of the table's order as the server accepted it. Held
// units are not included.
func (l *ItemLedger) Order(tableID string) (models.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.byTable[tableID]
	if !ok {
		return models.Order{}, false
	}
	cp := *o
	cp.Lines = append([]models.OrderItemLine(nil), o.Lines...)
	return cp, true
}

func (l *ItemLedger) OrderID(tableID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if o, ok := l.byTable[tableID]; ok {
		return o.ID
	}
	return ""
}

// TableOf returns the table an order is tracked under.
func (l *ItemLedger) TableOf(orderID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tableOf[orderID]
	return t, ok
}

// Tables lists the tables with a tracked order.
func (l *ItemLedger) Tables() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.byTable))
	for t := range l.byTable {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Lines returns the table's lines as the waiter sees them, held units
// included.
func (l *ItemLedger) Lines(tableID string) []models.OrderItemLine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.byTable[tableID]
	if !ok {
		return nil
	}
	lines := append([]models.OrderItemLine(nil), o.Lines...)
	held := l.held[tableID]
	seen := make(map[string]bool, len(lines))
	for i := range lines {
		lines[i].RequestedQty += held[lines[i].MenuItemID]
		seen[lines[i].MenuItemID] = true
	}
	extra := make([]string, 0, len(held))
	for id, n := range held {
		if !seen[id] && n > 0 {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		lines = append(lines, models.OrderItemLine{MenuItemID: id, RequestedQty: held[id]})
	}
	return lines
}

// Line returns the accepted line for a menu item.
func (l *ItemLedger) Line(tableID, menuItemID string) (models.OrderItemLine, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.byTable[tableID]
	if !ok {
		return models.OrderItemLine{}, false
	}
	if line := o.Line(menuItemID); line != nil {
		return *line, true
	}
	return models.OrderItemLine{}, false
}

// CurrentQty is the requested quantity of a menu item as the waiter sees it,
// held units included. 0 when absent.
func (l *ItemLedger) CurrentQty(tableID, menuItemID string) int {
	n := 0
	if line, ok := l.Line(tableID, menuItemID); ok {
		n = line.RequestedQty
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return n + l.held[tableID][menuItemID]
}

// Dirty reports whether an accepted write changed the table's quantities since
// the last refetch. The per-row breakdown of a dirty table is stale.
func (l *ItemLedger) Dirty(tableID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty[tableID]
}

// Hold shows one more unit of a menu item while its add is in flight. The
// returned func ends the hold; accepted moves the unit into the accepted copy.
// The func is safe to call more than once.
func (l *ItemLedger) Hold(tableID, menuItemID string) func(accepted bool) {
	l.mu.Lock()
	if _, ok := l.byTable[tableID]; !ok {
		l.mu.Unlock()
		return func(bool) {}
	}
	if l.held[tableID] == nil {
		l.held[tableID] = make(map[string]int)
	}
	l.held[tableID][menuItemID]++
	l.mu.Unlock()

	var once sync.Once
	return func(accepted bool) {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if h := l.held[tableID]; h[menuItemID] > 0 {
				h[menuItemID]--
				if h[menuItemID] == 0 {
					delete(h, menuItemID)
				}
			}
			if accepted {
				l.adjust(tableID, menuItemID, 1)
			}
		})
	}
}

// Adjust applies a change the server accepted to a line's requested quantity
// until the next Replace supersedes it. Lines reaching zero are removed.
func (l *ItemLedger) Adjust(tableID, menuItemID string, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adjust(tableID, menuItemID, delta)
}

func (l *ItemLedger) adjust(tableID, menuItemID string, delta int) {
	o, ok := l.byTable[tableID]
	if !ok {
		return
	}
	l.dirty[tableID] = true
	for i := range o.Lines {
		if o.Lines[i].MenuItemID != menuItemID {
			continue
		}
		o.Lines[i].RequestedQty += delta
		if o.Lines[i].RequestedQty <= 0 {
			o.Lines = append(o.Lines[:i], o.Lines[i+1:]...)
		}
		return
	}
	if delta > 0 {
		o.Lines = append(o.Lines, models.OrderItemLine{MenuItemID: menuItemID, RequestedQty: delta})
	}
}
