package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/utils"
	"golang.org/x/sync/errgroup"
)

// Messages pushed to UI clients.
const (
	UIEventOrderView  = "order_view"
	UIEventVoidBanner = "void_banner"
	UIEventToast      = "toast"
)

// Notifier pushes updates to whatever renders the UI.
type Notifier interface {
	Publish(event string, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, interface{}) {}

// Toast is a short user-visible message about a failed action.
type Toast struct {
	Level   string    `json:"level"`
	TableID string    `json:"table_id,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
}

// LineView is one line as the UI renders it.
type LineView struct {
	LineID       string `json:"line_id"`
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name,omitempty"`
	RequestedQty int    `json:"requested_qty"`
	NotifiedQty  int    `json:"notified_qty"`
	Preparing    int    `json:"preparing"`
	Ready        int    `json:"ready"`
	Served       int    `json:"served"`
	Cancellable  int    `json:"cancellable"`
	Pending      int    `json:"pending"`
}

// OrderView is the table screen's state.
type OrderView struct {
	TableID       string                    `json:"table_id"`
	OrderID       string                    `json:"order_id,omitempty"`
	TableName     string                    `json:"table_name,omitempty"`
	Status        models.OrderStatus        `json:"status,omitempty"`
	GuestCount    int                       `json:"guest_count,omitempty"`
	Customer      string                    `json:"customer,omitempty"`
	Lines         []LineView                `json:"lines"`
	PendingDeltas []models.DeltaItem        `json:"pending_deltas"`
	CanNotify     bool                      `json:"can_notify"`
	LastBatch     *models.NotificationBatch `json:"last_batch,omitempty"`
	Banners       []VoidBanner              `json:"banners"`
}

// FlowOptions wires a KitchenFlow.
type FlowOptions struct {
	API      OrderAPI
	History  *HistoryStore
	Notifier Notifier
	Actor    models.Actor

	// RefreshParallelism bounds concurrent per-order refetches in RefreshAll.
	RefreshParallelism int
}

// KitchenFlow is what the UI talks to. It ties the ledger, the progress
// tracker, the negotiator and the dispatcher to the server and keeps the
// local projections converging on the server's state by refetching after
// every write and on every external event.
type KitchenFlow struct {
	api        OrderAPI
	ledger     *ItemLedger
	tracker    *ProgressTracker
	negotiator CancellationNegotiator
	dispatcher *NotificationDispatcher
	banners    *BannerBoard
	history    *HistoryStore
	notifier   Notifier
	actor      models.Actor
	parallel   int

	// refetches are applied in the order they started, never older over newer
	seq     atomic.Uint64
	mu      sync.Mutex
	applied map[string]uint64
}

func NewKitchenFlow(opts FlowOptions) *KitchenFlow {
	ledger := NewItemLedger()
	tracker := NewProgressTracker()
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	actor := opts.Actor
	if actor == "" {
		actor = models.ActorWaiter
	}
	parallel := opts.RefreshParallelism
	if parallel <= 0 {
		parallel = 4
	}
	return &KitchenFlow{
		api:        opts.API,
		ledger:     ledger,
		tracker:    tracker,
		dispatcher: NewNotificationDispatcher(opts.API, ledger, tracker, opts.History),
		banners:    NewBannerBoard(),
		history:    opts.History,
		notifier:   notifier,
		actor:      actor,
		parallel:   parallel,
		applied:    make(map[string]uint64),
	}
}

func (kf *KitchenFlow) Ledger() *ItemLedger { return kf.ledger }
func (kf *KitchenFlow) Tracker() *ProgressTracker { return kf.tracker }
func (kf *KitchenFlow) Banners() *BannerBoard { return kf.banners }
func (kf *KitchenFlow) History() *HistoryStore { return kf.history }
func (kf *KitchenFlow) Dispatcher() *NotificationDispatcher { return kf.dispatcher }

/*
========================================
 READ SIDE
========================================
*/

func (kf *KitchenFlow) RequestedQty(tableID, menuItemID string) int {
	return kf.ledger.CurrentQty(tableID, menuItemID)
}

func (kf *KitchenFlow) CancellableQty(tableID, menuItemID string) int {
	orderID := kf.ledger.OrderID(tableID)
	if orderID == "" {
		return 0
	}
	return kf.tracker.Cancellable(orderID, menuItemID)
}

func (kf *KitchenFlow) NotifiedQty(tableID, menuItemID string) int {
	orderID := kf.ledger.OrderID(tableID)
	if orderID == "" {
		return 0
	}
	return kf.tracker.Notified(orderID, menuItemID)
}

func (kf *KitchenFlow) PendingDeltas(tableID string) []models.DeltaItem {
	return kf.dispatcher.Pending(tableID)
}

func (kf *KitchenFlow) CanNotify(tableID string) bool {
	return kf.dispatcher.CanNotify(tableID)
}

// View assembles the table screen from the cached projections.
func (kf *KitchenFlow) View(tableID string) OrderView {
	view := OrderView{
		TableID:       tableID,
		Lines:         []LineView{},
		PendingDeltas: []models.DeltaItem{},
		Banners:       []VoidBanner{},
	}
	order, ok := kf.ledger.Order(tableID)
	if !ok {
		return view
	}

	progress := kf.tracker.Snapshot(order.ID)
	view.OrderID = order.ID
	view.TableName = order.TableName
	view.Status = order.Status
	view.GuestCount = order.GuestCount
	view.Customer = order.Customer
	for _, line := range kf.ledger.Lines(tableID) {
		p := progress[line.MenuItemID]
		pending := line.RequestedQty - p.Notified
		if pending < 0 {
			pending = 0
		}
		name := line.Name
		if name == "" {
			name = p.Name
		}
		view.Lines = append(view.Lines, LineView{
			LineID:       line.LineID,
			MenuItemID:   line.MenuItemID,
			Name:         name,
			RequestedQty: line.RequestedQty,
			NotifiedQty:  p.Notified,
			Preparing:    p.Preparing,
			Ready:        p.Ready,
			Served:       p.Served,
			Cancellable:  p.Cancellable(),
			Pending:      pending,
		})
	}
	view.PendingDeltas = PendingDeltas(order.Lines, progress)
	view.CanNotify = len(view.PendingDeltas) > 0
	if b, ok := kf.dispatcher.LastBatch(order.ID); ok {
		view.LastBatch = &b
	}
	view.Banners = kf.banners.List(order.ID)
	return view
}

/*
========================================
 REFETCH
========================================
*/

// RefreshOrder replaces the order's ledger entry and progress snapshot with
// the server's current state.
func (kf *KitchenFlow) RefreshOrder(ctx context.Context, orderID string) error {
	seq := kf.seq.Add(1)

	var (
		order    *models.Order
		progress []models.ProgressSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := kf.api.GetOrder(gctx, orderID)
		order = o
		return err
	})
	g.Go(func() error {
		rows, err := kf.api.GetProgress(gctx, orderID)
		progress = rows
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			kf.forgetOrder(orderID)
			return nil
		}
		return classify("refresh", err)
	}

	kf.apply(seq, *order, progress)
	return nil
}

// RefreshTable refetches whatever order the table has, discovering it when
// the table is not tracked yet.
func (kf *KitchenFlow) RefreshTable(ctx context.Context, tableID string) error {
	if orderID := kf.ledger.OrderID(tableID); orderID != "" {
		return kf.RefreshOrder(ctx, orderID)
	}
	return kf.RefreshAll(ctx)
}

// RefreshAll refetches the list of active orders and the progress of each.
// Orders no longer active are dropped.
func (kf *KitchenFlow) RefreshAll(ctx context.Context) error {
	seq := kf.seq.Add(1)

	orders, err := kf.api.ListActiveOrders(ctx)
	if err != nil {
		return classify("refresh", err)
	}

	active := make(map[string]bool, len(orders))
	for _, o := range orders {
		active[o.ID] = true
	}
	for _, tableID := range kf.ledger.Tables() {
		if id := kf.ledger.OrderID(tableID); id != "" && !active[id] {
			kf.forgetOrder(id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(kf.parallel)
	for _, o := range orders {
		o := o
		g.Go(func() error {
			rows, err := kf.api.GetProgress(gctx, o.ID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			kf.apply(seq, o, rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return classify("refresh", err)
	}
	return nil
}

func (kf *KitchenFlow) apply(seq uint64, order models.Order, progress []models.ProgressSnapshot) {
	kf.mu.Lock()
	if kf.applied[order.ID] > seq {
		kf.mu.Unlock()
		utils.InfoLogger.WithField("order", order.ID).Debug("Dropping stale refetch")
		return
	}
	kf.applied[order.ID] = seq
	kf.mu.Unlock()

	if order.IsTerminal() {
		kf.forgetOrder(order.ID)
		return
	}
	kf.ledger.Replace(order)
	kf.tracker.Replace(order.ID, progress)
	kf.publishView(order.TableID)
}

func (kf *KitchenFlow) forgetOrder(orderID string) {
	tableID, _ := kf.ledger.TableOf(orderID)
	kf.ledger.ForgetOrder(orderID)
	kf.tracker.Forget(orderID)
	kf.banners.Forget(orderID)
	if tableID != "" {
		kf.publishView(tableID)
	}
}

// settle refetches after a write. A failed refetch is not an error for the
// write itself: the projection stays stale until the next event or poll.
func (kf *KitchenFlow) settle(ctx context.Context, orderID string) {
	if orderID == "" {
		return
	}
	if err := kf.RefreshOrder(ctx, orderID); err != nil {
		utils.ErrorLogger.WithField("order", orderID).Errorf("Refetch after write failed: %v", err)
	}
}

/*
========================================
 WRITE SIDE
========================================
*/

// Increment adds one unit of a menu item. Adding is never blocked by
// production state. The unit is shown right away but only becomes part of the
// order, and so of the next kitchen batch, once the server has accepted it.
func (kf *KitchenFlow) Increment(ctx context.Context, tableID, menuItemID string) (OrderView, error) {
	order, ok := kf.ledger.Order(tableID)
	if !ok {
		created, err := kf.api.CreateOrGetOrder(ctx, tableID)
		if err != nil {
			err = classify("increment", err)
			kf.toast(tableID, err)
			return kf.View(tableID), err
		}
		if created.TableID == "" {
			created.TableID = tableID
		}
		kf.ledger.Replace(*created)
		order = *created
	}

	// rows are only trusted straight from a refetch
	stale := kf.ledger.Dirty(tableID)
	release := kf.ledger.Hold(tableID, menuItemID)
	kf.publishView(tableID)

	err := kf.addOne(ctx, order, menuItemID, stale)
	release(err == nil)

	kf.settle(ctx, order.ID)
	if err != nil {
		err = classify("increment", err)
		kf.toast(tableID, err)
		return kf.View(tableID), err
	}
	return kf.View(tableID), nil
}

// addOne puts one unit on the server. The newest row of the line grows by one;
// when it is frozen by the kitchen, or the row breakdown is stale, the unit
// goes on through add-items instead.
func (kf *KitchenFlow) addOne(ctx context.Context, order models.Order, menuItemID string, stale bool) error {
	one := []models.ItemQty{{MenuItemID: menuItemID, Quantity: 1}}

	var row models.LineRow
	ok := false
	if line := order.Line(menuItemID); line != nil && !stale {
		row, ok = line.NewestRow()
	}
	if !ok {
		return kf.api.AddItems(ctx, order.ID, one, "")
	}

	err := kf.api.SetLineQuantity(ctx, order.ID, row.ID, row.Qty+1)
	if errors.Is(err, ErrLocked) || errors.Is(err, ErrNotFound) {
		return kf.api.AddItems(ctx, order.ID, one, "")
	}
	return err
}

// RequestDecrement reduces a line by |delta| units when that only touches
// un-notified units, and otherwise reports whether a cancellation can be
// negotiated. A rejected decrement leaves the line unchanged.
func (kf *KitchenFlow) RequestDecrement(ctx context.Context, tableID, menuItemID string, delta int) (Decision, error) {
	if kf.ledger.Dirty(tableID) {
		// the row writes below need the current row breakdown
		if err := kf.RefreshOrder(ctx, kf.ledger.OrderID(tableID)); err != nil {
			kf.toast(tableID, err)
			return Decision{}, err
		}
	}

	line, ok := kf.ledger.Line(tableID, menuItemID)
	if !ok {
		return Decision{}, validationError("decrement", ErrNotFound)
	}
	orderID := kf.ledger.OrderID(tableID)

	d, err := kf.negotiator.Decide(line, kf.tracker.Get(orderID, menuItemID), delta)
	if err != nil {
		return d, err
	}

	switch d.Kind {
	case DecisionFree:
		if d.ApplyQty == 0 {
			return d, nil
		}
		for _, w := range freeRowWrites(line, d.ApplyQty) {
			if err := kf.api.SetLineQuantity(ctx, orderID, w.ID, w.Qty); err != nil {
				kf.settle(ctx, orderID)
				err = classify("decrement", err)
				kf.toast(tableID, err)
				return d, err
			}
		}
		kf.ledger.Adjust(tableID, menuItemID, -d.ApplyQty)
		kf.publishView(tableID)
		kf.settle(ctx, orderID)
		return d, nil

	case DecisionRejected:
		err := conflictError("decrement", ErrAlreadyInProduction)
		kf.toast(tableID, err)
		return d, err

	default:
		d.Prompt.TableID = tableID
		return d, nil
	}
}

// ConfirmCancellation submits a confirmed cancellation of notified units.
// Validation runs against a freshly computed maximum before any network call.
// The server decides how many units it actually releases.
func (kf *KitchenFlow) ConfirmCancellation(ctx context.Context, req models.CancellationRequest) (models.CancellationResult, error) {
	result := models.CancellationResult{RequestedQty: req.Qty}

	line, ok := kf.ledger.Line(req.TableID, req.MenuItemID)
	if !ok {
		return result, validationError("cancel", ErrNotFound)
	}
	orderID := kf.ledger.OrderID(req.TableID)
	if req.LineID == "" {
		req.LineID = line.LineID
	}

	maxQty := kf.negotiator.MaxCancellable(line, kf.tracker.Get(orderID, req.MenuItemID))
	if err := kf.negotiator.Validate(req, maxQty); err != nil {
		return result, err
	}

	confirmed, err := kf.api.PartialCancel(ctx, req.LineID, req.Qty, strings.TrimSpace(req.Reason))
	if err != nil {
		kf.settle(ctx, orderID)
		err = classify("cancel", err)
		kf.toast(req.TableID, err)
		return result, err
	}
	if confirmed < 0 {
		confirmed = 0
	}
	result.ConfirmedQty = confirmed

	utils.InfoLogger.WithFields(logrus.Fields{
		"order":     orderID,
		"menu_item": req.MenuItemID,
		"requested": req.Qty,
		"confirmed": confirmed,
	}).Info("Partial cancel acknowledged")

	if confirmed > 0 {
		kf.ledger.Adjust(req.TableID, req.MenuItemID, -confirmed)
		rows := kf.tracker.Rows(orderID)
		for i := range rows {
			if rows[i].MenuItemID == req.MenuItemID {
				rows[i].Notified -= confirmed
				if rows[i].Notified < 0 {
					rows[i].Notified = 0
				}
			}
		}
		kf.tracker.Replace(orderID, rows)
		kf.publishView(req.TableID)
	}
	kf.settle(ctx, orderID)
	return result, nil
}

// Dispatch sends the table's pending deltas to the kitchen as this device's
// actor.
func (kf *KitchenFlow) Dispatch(ctx context.Context, tableID, note string, priority bool) (BatchResult, error) {
	return kf.DispatchAs(ctx, tableID, note, priority, "")
}

// DispatchAs is Dispatch on behalf of a given actor. An empty actor falls back
// to the device's.
func (kf *KitchenFlow) DispatchAs(ctx context.Context, tableID, note string, priority bool, actor models.Actor) (BatchResult, error) {
	if actor == "" {
		actor = kf.actor
	}
	res, err := kf.dispatcher.Dispatch(ctx, tableID, DispatchOptions{
		Note:     note,
		Priority: priority,
		Source:   actor,
	})
	if err != nil {
		kf.toast(tableID, err)
		return res, err
	}
	if res.Sent {
		kf.publishView(tableID)
		kf.settle(ctx, res.Batch.OrderID)
	}
	return res, nil
}

// freeRowWrites spreads a reduction of n un-notified units over the line's
// rows, newest first, and returns the new quantity of every row it touches.
// Older rows carry the units the kitchen was told about and may be frozen.
func freeRowWrites(line models.OrderItemLine, n int) []models.LineRow {
	rows := line.ServerRows()
	out := make([]models.LineRow, 0, len(rows))
	for i := len(rows) - 1; i >= 0 && n > 0; i-- {
		take := min(rows[i].Qty, n)
		if take <= 0 {
			continue
		}
		out = append(out, models.LineRow{ID: rows[i].ID, Qty: rows[i].Qty - take})
		n -= take
	}
	return out
}

/*
========================================
 BANNERS & HISTORY
========================================
*/

// PostVoid shows a banner for a kitchen void on a tracked order. It reports
// whether a new banner appeared.
func (kf *KitchenFlow) PostVoid(ev models.VoidEvent) bool {
	if !ev.FromKitchen() {
		return false
	}
	if _, tracked := kf.ledger.TableOf(ev.OrderID); !tracked {
		return false
	}
	banner, fresh := kf.banners.Post(ev)
	if !fresh {
		return false
	}
	if err := kf.history.RecordVoid(ev); err != nil {
		utils.ErrorLogger.Errorf("Error journaling void: %v", err)
	}
	kf.notifier.Publish(UIEventVoidBanner, banner)
	return true
}

func (kf *KitchenFlow) DismissBanner(orderID, menuItemID string) int {
	n := kf.banners.Dismiss(orderID, menuItemID)
	if tableID, ok := kf.ledger.TableOf(orderID); ok {
		kf.publishView(tableID)
	}
	return n
}

func (kf *KitchenFlow) DismissAllBanners(orderID string) {
	kf.banners.DismissAll(orderID)
	if tableID, ok := kf.ledger.TableOf(orderID); ok {
		kf.publishView(tableID)
	}
}

// VoidHistory lists today's voids for a table from the server.
func (kf *KitchenFlow) VoidHistory(ctx context.Context, tableID string) ([]models.VoidHistoryRow, error) {
	rows, err := kf.api.ListVoidEvents(ctx, tableID, time.Now())
	if err != nil {
		return nil, classify("void-history", err)
	}
	return rows, nil
}

func (kf *KitchenFlow) publishView(tableID string) {
	kf.notifier.Publish(UIEventOrderView, kf.View(tableID))
}

func (kf *KitchenFlow) toast(tableID string, err error) {
	kind := KindOf(err)
	if kind == KindValidation {
		return
	}
	kf.notifier.Publish(UIEventToast, Toast{
		Level:   "error",
		TableID: tableID,
		Kind:    kind,
		Message: err.Error(),
	})
}
