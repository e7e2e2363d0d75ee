package models

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is the read-through copy of a table's active check. The server owns it.
type Order struct {
	ID         string          `json:"id"`
	TableID    string          `json:"table_id"`
	TableName  string          `json:"table_name"`
	Status     OrderStatus     `json:"status"`
	GuestCount int             `json:"guest_count"`
	Customer   string          `json:"customer,omitempty"`
	Lines      []OrderItemLine `json:"lines"`
}

// NormalizeOrderStatus maps the server's richer status set onto the three
// states the engine cares about.
func NormalizeOrderStatus(raw string) OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID":
		return OrderStatusPaid
	case "CANCELLED", "CANCELED", "MERGED":
		return OrderStatusCancelled
	default:
		return OrderStatusOpen
	}
}

// IsTerminal reports whether the order no longer accepts line changes.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusCancelled
}

// Line returns the line for a menu item, or nil.
func (o *Order) Line(menuItemID string) *OrderItemLine {
	for i := range o.Lines {
		if o.Lines[i].MenuItemID == menuItemID {
			return &o.Lines[i]
		}
	}
	return nil
}

// Label is used in logs and kitchen tickets.
func (o *Order) Label() string {
	if o.TableName != "" {
		return fmt.Sprintf("%s (#%s)", o.TableName, o.ID)
	}
	return fmt.Sprintf("table-%s (#%s)", o.TableID, o.ID)
}
