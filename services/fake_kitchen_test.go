package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yeremiapane/waiter-pos/models"
)

type fakeRow struct {
	id         string
	menuItemID string
	qty        int
	locked     bool
}

type fakeOrder struct {
	id      string
	tableID string
	status  models.OrderStatus
	rows    []*fakeRow
}

// fakeKitchen is an in-memory POS server. Partial cancels are clamped to the
// cancellable amount the way the real server does it.
type fakeKitchen struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*fakeOrder
	progress map[string]map[string]*models.ProgressSnapshot
	batches  []models.NotificationBatch
	voids    []models.VoidHistoryRow

	calls map[string]int
	fail  map[string]error

	// lockOnDispatch freezes notified rows so further units go onto new rows
	lockOnDispatch bool

	// hooks run before the call takes effect, outside the lock
	onGetOrder func(orderID string)
	onAdd      func()
}

func newFakeKitchen() *fakeKitchen {
	return &fakeKitchen{
		orders:   make(map[string]*fakeOrder),
		progress: make(map[string]map[string]*models.ProgressSnapshot),
		calls:    make(map[string]int),
		fail:     make(map[string]error),
	}
}

func (k *fakeKitchen) nextID(prefix string) string {
	k.seq++
	return fmt.Sprintf("%s-%d", prefix, k.seq)
}

// enter records the call and returns the injected failure, if any.
func (k *fakeKitchen) enter(op string) error {
	k.calls[op]++
	if err, ok := k.fail[op]; ok {
		delete(k.fail, op)
		return err
	}
	return nil
}

func (k *fakeKitchen) failNext(op string, err error) {
	k.mu.Lock()
	k.fail[op] = err
	k.mu.Unlock()
}

func (k *fakeKitchen) callCount(op string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[op]
}

func (k *fakeKitchen) snapshot(o *fakeOrder) models.Order {
	rows := make([]models.OrderItemLine, 0, len(o.rows))
	for _, r := range o.rows {
		rows = append(rows, models.OrderItemLine{LineID: r.id, MenuItemID: r.menuItemID, RequestedQty: r.qty})
	}
	return models.Order{
		ID:      o.id,
		TableID: o.tableID,
		Status:  o.status,
		Lines:   models.FoldLines(rows),
	}
}

func (k *fakeKitchen) prog(orderID, menuItemID string) *models.ProgressSnapshot {
	m, ok := k.progress[orderID]
	if !ok {
		m = make(map[string]*models.ProgressSnapshot)
		k.progress[orderID] = m
	}
	p, ok := m[menuItemID]
	if !ok {
		p = &models.ProgressSnapshot{MenuItemID: menuItemID}
		m[menuItemID] = p
	}
	return p
}

func (k *fakeKitchen) CreateOrGetOrder(ctx context.Context, tableID string) (*models.Order, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("create"); err != nil {
		return nil, err
	}
	for _, o := range k.orders {
		if o.tableID == tableID && o.status == models.OrderStatusOpen {
			s := k.snapshot(o)
			return &s, nil
		}
	}
	o := &fakeOrder{id: k.nextID("order"), tableID: tableID, status: models.OrderStatusOpen}
	k.orders[o.id] = o
	s := k.snapshot(o)
	return &s, nil
}

func (k *fakeKitchen) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("list"); err != nil {
		return nil, err
	}
	out := []models.Order{}
	for _, o := range k.orders {
		if o.status == models.OrderStatusOpen {
			out = append(out, k.snapshot(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (k *fakeKitchen) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if k.onGetOrder != nil {
		k.onGetOrder(orderID)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("get"); err != nil {
		return nil, err
	}
	o, ok := k.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", orderID, ErrNotFound)
	}
	s := k.snapshot(o)
	return &s, nil
}

func (k *fakeKitchen) AddItems(ctx context.Context, orderID string, items []models.ItemQty, batchID string) error {
	if k.onAdd != nil {
		k.onAdd()
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("add"); err != nil {
		return err
	}
	o, ok := k.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	for _, it := range items {
		added := false
		for _, r := range o.rows {
			if r.menuItemID == it.MenuItemID && !r.locked {
				r.qty += it.Quantity
				added = true
				break
			}
		}
		if !added {
			o.rows = append(o.rows, &fakeRow{id: k.nextID("line"), menuItemID: it.MenuItemID, qty: it.Quantity})
		}
	}
	return nil
}

func (k *fakeKitchen) SetLineQuantity(ctx context.Context, orderID, lineID string, qty int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("set"); err != nil {
		return err
	}
	o, ok := k.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	for i, r := range o.rows {
		if r.id != lineID {
			continue
		}
		if r.locked {
			return ErrLocked
		}
		if qty <= 0 {
			o.rows = append(o.rows[:i], o.rows[i+1:]...)
			return nil
		}
		r.qty = qty
		return nil
	}
	return ErrNotFound
}

func (k *fakeKitchen) PartialCancel(ctx context.Context, lineID string, qty int, reason string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("cancel"); err != nil {
		return 0, err
	}
	for _, o := range k.orders {
		for _, r := range o.rows {
			if r.id != lineID {
				continue
			}
			p := k.prog(o.id, r.menuItemID)
			confirmed := qty
			if c := p.Cancellable(); confirmed > c {
				confirmed = c
			}
			if confirmed <= 0 {
				return 0, ErrLocked
			}
			r.qty -= confirmed
			p.Notified -= confirmed
			return confirmed, nil
		}
	}
	return 0, ErrNotFound
}

func (k *fakeKitchen) DispatchKitchenNotification(ctx context.Context, batch models.NotificationBatch) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("dispatch"); err != nil {
		return err
	}
	if _, ok := k.orders[batch.OrderID]; !ok {
		return ErrNotFound
	}
	for _, it := range batch.Items {
		k.prog(batch.OrderID, it.MenuItemID).Notified += it.Delta
	}
	if k.lockOnDispatch {
		for _, r := range k.orders[batch.OrderID].rows {
			r.locked = true
		}
	}
	k.batches = append(k.batches, batch)
	return nil
}

func (k *fakeKitchen) GetProgress(ctx context.Context, orderID string) ([]models.ProgressSnapshot, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("progress"); err != nil {
		return nil, err
	}
	rows := []models.ProgressSnapshot{}
	for _, p := range k.progress[orderID] {
		rows = append(rows, *p)
	}
	return rows, nil
}

func (k *fakeKitchen) ListVoidEvents(ctx context.Context, tableID string, day time.Time) ([]models.VoidHistoryRow, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.enter("voids"); err != nil {
		return nil, err
	}
	return append([]models.VoidHistoryRow(nil), k.voids...), nil
}

// kitchen-side actions

func (k *fakeKitchen) startPreparing(orderID, menuItemID string, n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.prog(orderID, menuItemID).Preparing += n
}

// voidPreparing removes n preparing units, the way a kitchen void does.
func (k *fakeKitchen) voidPreparing(orderID, menuItemID string, n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.prog(orderID, menuItemID)
	p.Preparing -= n
	p.Notified -= n
	left := n
	for _, r := range k.orders[orderID].rows {
		if r.menuItemID != menuItemID || left == 0 {
			continue
		}
		take := left
		if take > r.qty {
			take = r.qty
		}
		r.qty -= take
		left -= take
	}
}

// seedRows appends one unlocked row per quantity, the way several waiters
// adding the same item end up on separate rows.
func (k *fakeKitchen) seedRows(orderID, menuItemID string, qtys ...int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	o := k.orders[orderID]
	for _, q := range qtys {
		o.rows = append(o.rows, &fakeRow{id: k.nextID("line"), menuItemID: menuItemID, qty: q})
	}
}

func (k *fakeKitchen) setStatus(orderID string, status models.OrderStatus) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.orders[orderID].status = status
}

func (k *fakeKitchen) serverQty(orderID, menuItemID string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, r := range k.orders[orderID].rows {
		if r.menuItemID == menuItemID {
			n += r.qty
		}
	}
	return n
}

// recordingNotifier keeps what was published to the UI.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	data   []interface{}
}

func (r *recordingNotifier) Publish(event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.data = append(r.data, data)
}

func (r *recordingNotifier) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}
