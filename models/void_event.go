package models

import (
	"fmt"
	"strings"
	"time"
)

// VoidEvent is a kitchen-initiated cancellation. It is informational: the
// quantities it mentions are picked up by the next refetch, not applied.
type VoidEvent struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	OrderID    string    `gorm:"type:varchar(64);index;not null" json:"orderId"`
	MenuItemID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_void_key" json:"menuItemId"`
	Qty        int       `gorm:"not null;uniqueIndex:idx_void_key" json:"qty"`
	Reason     string    `gorm:"type:varchar(255);uniqueIndex:idx_void_key" json:"reason,omitempty"`
	TicketID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_void_key" json:"ticketId"`
	By         string    `gorm:"type:varchar(20)" json:"by,omitempty"`
	ReceivedAt time.Time `gorm:"not null" json:"receivedAt"`
}

// VoidKey is the natural key used to drop repeated deliveries.
type VoidKey struct {
	TicketID   string
	MenuItemID string
	Qty        int
	Reason     string
}

func (k VoidKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%s", k.TicketID, k.MenuItemID, k.Qty, k.Reason)
}

// Key returns the dedup key. A missing reason and an empty one are the same.
func (v VoidEvent) Key() VoidKey {
	return VoidKey{
		TicketID:   v.TicketID,
		MenuItemID: v.MenuItemID,
		Qty:        v.Qty,
		Reason:     strings.TrimSpace(v.Reason),
	}
}

// FromKitchen reports whether the kitchen issued the void. Events without an
// actor are treated as kitchen events.
func (v VoidEvent) FromKitchen() bool {
	return v.By == "" || strings.EqualFold(v.By, string(ActorKitchen))
}

// VoidHistoryRow is a server-side record of a void, listed per table.
type VoidHistoryRow struct {
	ID        string  `json:"id"`
	TableName string  `json:"tableName"`
	ItemName  string  `json:"itemName"`
	Qty       int     `json:"qty"`
	CreatedAt string  `json:"createdAt"`
	Source    string  `json:"source"`
	Reason    *string `json:"reason"`
	ByName    *string `json:"byName"`
}
