package models

// CancelReasons are the presets offered in the confirmation prompt. Any other
// non-empty reason is accepted as free text.
var CancelReasons = []string{
	"Customer changed order",
	"Ordered by mistake",
	"Out of stock",
	"Wrong ticket printed",
}

// CancelPrompt is what the UI needs to render the cancellation dialog.
type CancelPrompt struct {
	TableID        string   `json:"table_id"`
	LineID         string   `json:"line_id"`
	MenuItemID     string   `json:"menu_item_id"`
	Name           string   `json:"name,omitempty"`
	MaxQty         int      `json:"max_qty"`
	ReasonRequired bool     `json:"reason_required"`
	Reasons        []string `json:"reasons"`
}

// CancellationRequest is the waiter's confirmed reduction of notified units.
type CancellationRequest struct {
	TableID    string `json:"table_id"`
	LineID     string `json:"line_id" binding:"required"`
	MenuItemID string `json:"menu_item_id" binding:"required"`
	Qty        int    `json:"qty"`
	Reason     string `json:"reason"`
}

// CancellationResult reports what the server actually released.
type CancellationResult struct {
	RequestedQty int `json:"requested_qty"`
	ConfirmedQty int `json:"confirmed_qty"`
}
