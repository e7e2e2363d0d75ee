package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventKind string

// Wire names used by the realtime namespace.
const (
	EventOrderChanged          EventKind = "orders:changed"
	EventOrderMerged           EventKind = "orders:merged"
	EventOrderSplit            EventKind = "orders:split"
	EventOrderMetaUpdated      EventKind = "orders:meta_updated"
	EventTicketStatusChanged   EventKind = "kitchen:ticket_status_changed"
	EventKitchenVoidSynced     EventKind = "kitchen:void_synced"
	EventKitchenNewBatch       EventKind = "kitchen:new_batch"
	EventKitchenTicketsVoided  EventKind = "kitchen:tickets_voided"
	EventKitchenTicketsPatched EventKind = "kitchen:tickets_patched"
	EventKitchenOrderVoided    EventKind = "kitchen:order_voided"
)

var ErrUnknownEvent = errors.New("unknown event")

// TicketChange is one entry of a ticket status change push.
type TicketChange struct {
	OrderID    string `json:"orderId"`
	TicketID   string `json:"ticketId"`
	MenuItemID string `json:"menuItemId"`
	Qty        int    `json:"qty"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
}

// ExternalEvent is a decoded push notification. Only the fields relevant to
// Kind are set; none of them are applied to local state directly.
type ExternalEvent struct {
	Kind       EventKind      `json:"kind"`
	OrderID    string         `json:"order_id,omitempty"`
	Tickets    []TicketChange `json:"tickets,omitempty"`
	Void       *VoidEvent     `json:"void,omitempty"`
	GuestCount int            `json:"guest_count,omitempty"`
	Customer   string         `json:"customer,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// OrderIDs lists the orders the event touches. Empty means "any order".
func (e ExternalEvent) OrderIDs() []string {
	switch e.Kind {
	case EventTicketStatusChanged:
		seen := make(map[string]bool, len(e.Tickets))
		ids := make([]string, 0, len(e.Tickets))
		for _, t := range e.Tickets {
			if t.OrderID == "" || seen[t.OrderID] {
				continue
			}
			seen[t.OrderID] = true
			ids = append(ids, t.OrderID)
		}
		return ids
	case EventKitchenVoidSynced:
		if e.Void != nil && e.Void.OrderID != "" {
			return []string{e.Void.OrderID}
		}
		return nil
	default:
		if e.OrderID != "" {
			return []string{e.OrderID}
		}
		return nil
	}
}

type orderRef struct {
	OrderID string `json:"orderId"`
}

type metaPayload struct {
	OrderID    string          `json:"orderId"`
	GuestCount int             `json:"guestCount"`
	Customer   json.RawMessage `json:"customer"`
}

// DecodeEvent turns an (event name, JSON payload) pair into an ExternalEvent.
func DecodeEvent(name string, data []byte) (ExternalEvent, error) {
	ev := ExternalEvent{Kind: EventKind(name), ReceivedAt: time.Now()}
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}

	switch ev.Kind {
	case EventOrderMerged, EventOrderSplit:
		var ref orderRef
		// merged/split payloads are not relied upon
		_ = json.Unmarshal(data, &ref)
		ev.OrderID = ref.OrderID
	case EventOrderChanged, EventKitchenNewBatch, EventKitchenTicketsVoided,
		EventKitchenTicketsPatched, EventKitchenOrderVoided:
		var ref orderRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return ev, fmt.Errorf("decode %s: %w", name, err)
		}
		ev.OrderID = ref.OrderID
	case EventOrderMetaUpdated:
		var p metaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", name, err)
		}
		ev.OrderID = p.OrderID
		ev.GuestCount = p.GuestCount
		ev.Customer = customerName(p.Customer)
	case EventTicketStatusChanged:
		var p struct {
			Items []TicketChange `json:"items"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", name, err)
		}
		ev.Tickets = p.Items
	case EventKitchenVoidSynced:
		var v VoidEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return ev, fmt.Errorf("decode %s: %w", name, err)
		}
		v.ReceivedAt = ev.ReceivedAt
		ev.Void = &v
		ev.OrderID = v.OrderID
	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return ev, nil
}

// customer arrives either as a plain string or as an object with a name.
func customerName(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}
