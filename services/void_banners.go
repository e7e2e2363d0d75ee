package services

import (
	"sync"
	"time"

	"github.com/yeremiapane/waiter-pos/models"
)

// VoidBanner is a dismissible notice about a kitchen void.
type VoidBanner struct {
	Key        string    `json:"key"`
	OrderID    string    `json:"order_id"`
	MenuItemID string    `json:"menu_item_id"`
	Qty        int       `json:"qty"`
	Reason     string    `json:"reason,omitempty"`
	TicketID   string    `json:"ticket_id"`
	By         string    `json:"by,omitempty"`
	ShownAt    time.Time `json:"shown_at"`
}

// BannerBoard keeps the void banners per order. A key that was posted once is
// remembered even after its banner is dismissed, so a redelivery does not
// bring it back.
type BannerBoard struct {
	mu      sync.Mutex
	seen    map[string]map[models.VoidKey]bool
	visible map[string][]VoidBanner
}

func NewBannerBoard() *BannerBoard {
	return &BannerBoard{
		seen:    make(map[string]map[models.VoidKey]bool),
		visible: make(map[string][]VoidBanner),
	}
}

// Post adds a banner for ev and reports whether it was new.
func (b *BannerBoard) Post(ev models.VoidEvent) (VoidBanner, bool) {
	key := ev.Key()

	b.mu.Lock()
	defer b.mu.Unlock()

	keys, ok := b.seen[ev.OrderID]
	if !ok {
		keys = make(map[models.VoidKey]bool)
		b.seen[ev.OrderID] = keys
	}
	if keys[key] {
		return VoidBanner{}, false
	}
	keys[key] = true

	banner := VoidBanner{
		Key:        key.String(),
		OrderID:    ev.OrderID,
		MenuItemID: ev.MenuItemID,
		Qty:        ev.Qty,
		Reason:     key.Reason,
		TicketID:   ev.TicketID,
		By:         ev.By,
		ShownAt:    time.Now(),
	}
	b.visible[ev.OrderID] = append(b.visible[ev.OrderID], banner)
	return banner, true
}

// List returns the visible banners of an order, oldest first.
func (b *BannerBoard) List(orderID string) []VoidBanner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]VoidBanner{}, b.visible[orderID]...)
}

// Dismiss hides the banners of one menu item and returns how many were hidden.
func (b *BannerBoard) Dismiss(orderID, menuItemID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.visible[orderID]
	kept := cur[:0]
	removed := 0
	for _, banner := range cur {
		if banner.MenuItemID == menuItemID {
			removed++
			continue
		}
		kept = append(kept, banner)
	}
	b.visible[orderID] = kept
	return removed
}

func (b *BannerBoard) DismissAll(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.visible, orderID)
}

// Forget drops both the banners and the dedup memory of an order.
func (b *BannerBoard) Forget(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.visible, orderID)
	delete(b.seen, orderID)
}
