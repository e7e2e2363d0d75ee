package services

import (
	"strings"

	"github.com/yeremiapane/waiter-pos/models"
)

type DecisionKind string

const (
	// DecisionFree removes only units the kitchen has never heard of.
	DecisionFree DecisionKind = "free"

	// DecisionRejected means every notified unit is already in production.
	DecisionRejected DecisionKind = "rejected"

	// DecisionNegotiate needs a confirmed CancellationRequest.
	DecisionNegotiate DecisionKind = "negotiate"
)

// Decision is the negotiator's verdict on a decrement.
type Decision struct {
	Kind         DecisionKind         `json:"kind"`
	MenuItemID   string               `json:"menu_item_id"`
	RequestedQty int                  `json:"requested_qty"`
	NotifiedQty  int                  `json:"notified_qty"`
	NonNotified  int                  `json:"non_notified"`
	Cancellable  int                  `json:"cancellable"`
	ApplyQty     int                  `json:"apply_qty,omitempty"`
	NewQty       int                  `json:"new_qty"`
	Prompt       *models.CancelPrompt `json:"prompt,omitempty"`
}

// CancellationNegotiator decides how a quantity reduction is reconciled with
// what the kitchen already knows. It holds no state.
type CancellationNegotiator struct{}

// Decide classifies a decrement of |delta| units on line. delta must be negative.
func (CancellationNegotiator) Decide(line models.OrderItemLine, progress models.ProgressSnapshot, delta int) (Decision, error) {
	if delta >= 0 {
		return Decision{}, validationError("decide", ErrNonNegativeDelta)
	}

	requested := line.RequestedQty
	notified := progress.Notified
	if notified < 0 {
		notified = 0
	}
	nonNotified := requested - notified
	if nonNotified < 0 {
		nonNotified = 0
	}

	// Asking for more than is on the line only ever removes what is there.
	magnitude := -delta
	if magnitude > requested {
		magnitude = requested
	}

	d := Decision{
		MenuItemID:   line.MenuItemID,
		RequestedQty: requested,
		NotifiedQty:  notified,
		NonNotified:  nonNotified,
		Cancellable:  progress.Cancellable(),
		NewQty:       requested,
	}

	if magnitude <= nonNotified {
		d.Kind = DecisionFree
		d.ApplyQty = magnitude
		d.NewQty = requested - magnitude
		return d, nil
	}

	if d.Cancellable <= 0 {
		d.Kind = DecisionRejected
		return d, nil
	}

	d.Kind = DecisionNegotiate
	d.Prompt = &models.CancelPrompt{
		LineID:         line.LineID,
		MenuItemID:     line.MenuItemID,
		Name:           line.Name,
		MaxQty:         maxCancellable(requested, nonNotified, d.Cancellable),
		ReasonRequired: true,
		Reasons:        models.CancelReasons,
	}
	return d, nil
}

// MaxCancellable is the largest cancellation the waiter may confirm right now.
func (CancellationNegotiator) MaxCancellable(line models.OrderItemLine, progress models.ProgressSnapshot) int {
	notified := progress.Notified
	if notified < 0 {
		notified = 0
	}
	nonNotified := line.RequestedQty - notified
	if nonNotified < 0 {
		nonNotified = 0
	}
	return maxCancellable(line.RequestedQty, nonNotified, progress.Cancellable())
}

// Validate checks a confirmed request against maxQty before any network call.
func (CancellationNegotiator) Validate(req models.CancellationRequest, maxQty int) error {
	if strings.TrimSpace(req.Reason) == "" {
		return validationError("cancel", ErrEmptyReason)
	}
	if req.Qty < 1 {
		return validationError("cancel", ErrNonPositiveQty)
	}
	if req.Qty > maxQty {
		return validationError("cancel", ErrQtyExceedsMax)
	}
	return nil
}

func maxCancellable(requested, nonNotified, cancellable int) int {
	m := requested - nonNotified
	if cancellable < m {
		m = cancellable
	}
	if m < 0 {
		return 0
	}
	return m
}
