package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrderStatus(t *testing.T) {
	assert.Equal(t, OrderStatusOpen, NormalizeOrderStatus("CONFIRMED"))
	assert.Equal(t, OrderStatusOpen, NormalizeOrderStatus(""))
	assert.Equal(t, OrderStatusPaid, NormalizeOrderStatus(" paid "))
	assert.Equal(t, OrderStatusCancelled, NormalizeOrderStatus("canceled"))
	assert.Equal(t, OrderStatusCancelled, NormalizeOrderStatus("MERGED"))
}

func TestOrder_Helpers(t *testing.T) {
	o := Order{ID: "o1", TableID: "T1", Status: OrderStatusOpen, Lines: []OrderItemLine{
		{LineID: "r1", MenuItemID: "m1", RequestedQty: 2},
	}}
	assert.False(t, o.IsTerminal())
	assert.Equal(t, "table-T1 (#o1)", o.Label())
	assert.NotNil(t, o.Line("m1"))
	assert.Nil(t, o.Line("m2"))

	o.TableName = "Meja 4"
	o.Status = OrderStatusPaid
	assert.True(t, o.IsTerminal())
	assert.Equal(t, "Meja 4 (#o1)", o.Label())

	b := NotificationBatch{Items: []DeltaItem{{MenuItemID: "m1", Delta: 2}, {MenuItemID: "m2", Delta: 1}}}
	assert.Equal(t, 3, b.TotalUnits())
}
