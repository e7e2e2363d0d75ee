package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldLines(t *testing.T) {
	rows := []OrderItemLine{
		{LineID: "r1", MenuItemID: "m1", Name: "Nasi Goreng", RequestedQty: 2},
		{LineID: "r2", MenuItemID: "m2", RequestedQty: 1},
		{LineID: "r3", MenuItemID: "m1", RequestedQty: 3, Note: "pedas"},
		{LineID: "r4", MenuItemID: "m3", RequestedQty: 0},
		{LineID: "r5", RequestedQty: 4},
	}

	got := FoldLines(rows)
	assert.Equal(t, []OrderItemLine{
		{LineID: "r1", MenuItemID: "m1", Name: "Nasi Goreng", RequestedQty: 5, Note: "pedas",
			Rows: []LineRow{{ID: "r1", Qty: 2}, {ID: "r3", Qty: 3}}},
		{LineID: "r2", MenuItemID: "m2", RequestedQty: 1, Rows: []LineRow{{ID: "r2", Qty: 1}}},
	}, got)

	assert.Empty(t, FoldLines(nil))
}

func TestFoldLines_EmptyFirstRow(t *testing.T) {
	got := FoldLines([]OrderItemLine{
		{LineID: "r1", MenuItemID: "m1", RequestedQty: 0},
		{LineID: "r2", MenuItemID: "m1", RequestedQty: 2},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].LineID)
	assert.Equal(t, []LineRow{{ID: "r2", Qty: 2}}, got[0].Rows)
}

func TestOrderItemLine_Rows(t *testing.T) {
	single := OrderItemLine{LineID: "r1", MenuItemID: "m1", RequestedQty: 3}
	assert.Equal(t, []LineRow{{ID: "r1", Qty: 3}}, single.ServerRows())

	folded := OrderItemLine{LineID: "r1", MenuItemID: "m1", RequestedQty: 3,
		Rows: []LineRow{{ID: "r1", Qty: 2}, {ID: "r4", Qty: 1}}}
	newest, ok := folded.NewestRow()
	require.True(t, ok)
	assert.Equal(t, LineRow{ID: "r4", Qty: 1}, newest)

	_, ok = OrderItemLine{MenuItemID: "m1", RequestedQty: 1}.NewestRow()
	assert.False(t, ok)
}

func TestProgressSnapshot_Cancellable(t *testing.T) {
	tests := []struct {
		name string
		p    ProgressSnapshot
		want int
	}{
		{"nothing started", ProgressSnapshot{Notified: 3}, 3},
		{"some preparing", ProgressSnapshot{Notified: 3, Preparing: 1, Ready: 1}, 1},
		{"all served", ProgressSnapshot{Notified: 2, Served: 2}, 0},
		{"counters overshoot", ProgressSnapshot{Notified: 2, Preparing: 3}, 0},
		{"negative counters", ProgressSnapshot{Notified: 2, Preparing: -1}, 2},
		{"negative notified", ProgressSnapshot{Notified: -1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Cancellable())
		})
	}
}

func TestMergeProgress(t *testing.T) {
	merged := MergeProgress([]ProgressSnapshot{
		{MenuItemID: "m1", Notified: 2, Preparing: 1},
		{MenuItemID: "m1", Name: "Sate", Notified: 1, Ready: 1},
		{MenuItemID: "m2", Notified: 1},
		{Notified: 9},
	})
	assert.Len(t, merged, 2)
	assert.Equal(t, ProgressSnapshot{MenuItemID: "m1", Name: "Sate", Notified: 3, Preparing: 1, Ready: 1}, merged["m1"])
	assert.Equal(t, 1, merged["m1"].Cancellable())
}
