package models

import (
	"time"
)

type Actor string

const (
	ActorWaiter  Actor = "waiter"
	ActorCashier Actor = "cashier"
	ActorKitchen Actor = "kitchen"
)

// DeltaItem is a quantity of a menu item that has not been sent to the kitchen yet.
type DeltaItem struct {
	MenuItemID string `json:"menuItemId"`
	Delta      int    `json:"delta"`
}

// NotificationBatch is one kitchen notification. Immutable once sent; the
// BatchID is never reused.
type NotificationBatch struct {
	ID          uint        `gorm:"primaryKey" json:"-"`
	BatchID     string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"batchId"`
	OrderID     string      `gorm:"type:varchar(64);index;not null" json:"orderId"`
	TableName   string      `gorm:"type:varchar(100)" json:"tableName,omitempty"`
	Items       []DeltaItem `gorm:"serializer:json;type:text" json:"items"`
	Note        string      `gorm:"type:text" json:"note,omitempty"`
	Priority    bool        `json:"priority"`
	SourceActor Actor       `gorm:"type:varchar(20);not null" json:"sourceActor"`
	CreatedAt   time.Time   `gorm:"not null" json:"createdAt"`
}

// TotalUnits is the sum of all deltas in the batch.
func (b *NotificationBatch) TotalUnits() int {
	n := 0
	for _, it := range b.Items {
		n += it.Delta
	}
	return n
}
