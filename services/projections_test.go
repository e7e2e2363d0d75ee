package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/waiter-pos/models"
)

func TestProgressTracker_ReplaceOnly(t *testing.T) {
	pt := NewProgressTracker()
	pt.Replace("o1", []models.ProgressSnapshot{
		{MenuItemID: "m1", Notified: 2, Preparing: 1},
		{MenuItemID: "m1", Notified: 1},
		{MenuItemID: "m2", Notified: 1, Ready: 3},
	})

	assert.Equal(t, 3, pt.Notified("o1", "m1"))
	assert.Equal(t, 2, pt.Cancellable("o1", "m1"))
	assert.Equal(t, 0, pt.Cancellable("o1", "m2"))
	assert.Equal(t, 0, pt.Notified("o1", "missing"))

	// a copy, not the cache
	snap := pt.Snapshot("o1")
	snap["m1"] = models.ProgressSnapshot{MenuItemID: "m1", Notified: 99}
	assert.Equal(t, 3, pt.Notified("o1", "m1"))

	pt.Replace("o1", []models.ProgressSnapshot{{MenuItemID: "m2", Notified: 1}})
	assert.Equal(t, 0, pt.Notified("o1", "m1"))
	assert.Len(t, pt.Rows("o1"), 1)

	pt.Forget("o1")
	assert.Empty(t, pt.Snapshot("o1"))
}

func TestProgressTracker_CancellableBounds(t *testing.T) {
	pt := NewProgressTracker()
	rows := []models.ProgressSnapshot{
		{MenuItemID: "a", Notified: 0, Preparing: 2},
		{MenuItemID: "b", Notified: 5, Preparing: -3},
		{MenuItemID: "c", Notified: -1},
		{MenuItemID: "d", Notified: 4, Preparing: 1, Ready: 1, Served: 1},
	}
	pt.Replace("o1", rows)
	for _, r := range rows {
		c := pt.Cancellable("o1", r.MenuItemID)
		assert.GreaterOrEqual(t, c, 0, r.MenuItemID)
		assert.LessOrEqual(t, c, pt.Notified("o1", r.MenuItemID), r.MenuItemID)
	}
	assert.Equal(t, 1, pt.Cancellable("o1", "d"))
}

func testOrder(id, table string, lines ...models.OrderItemLine) models.Order {
	return models.Order{ID: id, TableID: table, Status: models.OrderStatusOpen, Lines: lines}
}

func TestItemLedger_ReplaceAndForget(t *testing.T) {
	l := NewItemLedger()
	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 2}))

	assert.Equal(t, "o1", l.OrderID("T1"))
	assert.Equal(t, 2, l.CurrentQty("T1", "m1"))
	assert.Equal(t, 0, l.CurrentQty("T1", "m2"))
	table, ok := l.TableOf("o1")
	require.True(t, ok)
	assert.Equal(t, "T1", table)

	// the table moved on to another order (e.g. after a split)
	l.Replace(testOrder("o2", "T1"))
	_, ok = l.TableOf("o1")
	assert.False(t, ok)
	assert.Equal(t, "o2", l.OrderID("T1"))

	paid := testOrder("o2", "T1")
	paid.Status = models.OrderStatusPaid
	l.Replace(paid)
	assert.Empty(t, l.OrderID("T1"))
	assert.Empty(t, l.Tables())

	l.Replace(testOrder("o3", "T2"))
	l.ForgetOrder("o3")
	assert.Empty(t, l.OrderID("T2"))
	_, ok = l.TableOf("o3")
	assert.False(t, ok)
}

func TestItemLedger_Adjust(t *testing.T) {
	l := NewItemLedger()
	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 2}))

	l.Adjust("T1", "m1", 1)
	assert.Equal(t, 3, l.CurrentQty("T1", "m1"))

	l.Adjust("T1", "m2", 1)
	line, ok := l.Line("T1", "m2")
	require.True(t, ok)
	assert.Empty(t, line.LineID)

	l.Adjust("T1", "m1", -5)
	_, ok = l.Line("T1", "m1")
	assert.False(t, ok)

	// untracked tables are ignored
	l.Adjust("T9", "m1", 1)
	assert.Equal(t, 0, l.CurrentQty("T9", "m1"))
}

func TestItemLedger_OrderIsACopy(t *testing.T) {
	l := NewItemLedger()
	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 2}))

	o, ok := l.Order("T1")
	require.True(t, ok)
	o.Lines[0].RequestedQty = 50
	assert.Equal(t, 2, l.CurrentQty("T1", "m1"))
}

func TestItemLedger_Dirty(t *testing.T) {
	l := NewItemLedger()
	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 2}))
	assert.False(t, l.Dirty("T1"))

	l.Adjust("T1", "m1", -1)
	assert.True(t, l.Dirty("T1"))

	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 1}))
	assert.False(t, l.Dirty("T1"))

	l.Adjust("T9", "m1", 1)
	assert.False(t, l.Dirty("T9"))
}

func TestItemLedger_Hold(t *testing.T) {
	l := NewItemLedger()
	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 2}))

	release := l.Hold("T1", "m1")
	releaseNew := l.Hold("T1", "m2")

	// shown to the waiter
	assert.Equal(t, 3, l.CurrentQty("T1", "m1"))
	assert.Equal(t, 1, l.CurrentQty("T1", "m2"))
	lines := l.Lines("T1")
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].RequestedQty)
	assert.Equal(t, "m2", lines[1].MenuItemID)
	assert.Empty(t, lines[1].LineID)

	// but not part of the accepted order
	o, ok := l.Order("T1")
	require.True(t, ok)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 2, o.Lines[0].RequestedQty)
	line, ok := l.Line("T1", "m1")
	require.True(t, ok)
	assert.Equal(t, 2, line.RequestedQty)

	release(true)
	release(true)
	releaseNew(false)

	assert.Equal(t, 3, l.CurrentQty("T1", "m1"))
	assert.Equal(t, 0, l.CurrentQty("T1", "m2"))
	o, _ = l.Order("T1")
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 3, o.Lines[0].RequestedQty)
	assert.True(t, l.Dirty("T1"))

	// untracked tables hold nothing
	l.Hold("T9", "m1")(true)
	assert.Equal(t, 0, l.CurrentQty("T9", "m1"))
}

func TestItemLedger_ForgetDropsHolds(t *testing.T) {
	l := NewItemLedger()
	l.Replace(testOrder("o1", "T1", models.OrderItemLine{LineID: "l1", MenuItemID: "m1", RequestedQty: 1}))
	release := l.Hold("T1", "m1")
	l.ForgetOrder("o1")
	release(true)

	l.Replace(testOrder("o2", "T1", models.OrderItemLine{LineID: "l2", MenuItemID: "m1", RequestedQty: 1}))
	assert.Equal(t, 1, l.CurrentQty("T1", "m1"))
	assert.False(t, l.Dirty("T1"))
}
