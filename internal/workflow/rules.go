package workflow

import (
	"time"

	"giftpos/internal/model"
)

// Direction classifies a requested transition relative to the current stage.
type Direction int

const (
	NoOp     Direction = iota // target equals current
	Forward                   // target is later in the sequence
	Backward                  // target is earlier; needs authorization
)

func (d Direction) String() string {
	switch d {
	case NoOp:
		return "noop"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// Classify compares the positions of current and target in seq.
func (seq Sequence) Classify(current, target Stage) Direction {
	i, j := seq.Index(current), seq.Index(target)
	switch {
	case j == i:
		return NoOp
	case j > i:
		return Forward
	default:
		return Backward
	}
}

// Current returns the order's stage, treating an empty status as pending.
func Current(o *model.Order) Stage {
	return Normalize(o.FulfillmentStatus)
}

// CheckGuide enforces the shipment guide precondition for target. Only
// shipped and delivered are checked.
func CheckGuide(target Stage, shipping *model.ShippingDetails) error {
	if !RequiresGuide(target) {
		return nil
	}
	if shipping.HasGuide() || (shipping != nil && shipping.IsLocalDelivery) {
		return nil
	}
	return &ValidationError{
		Field:    "shippingDetails.guideFile",
		Message:  ErrGuideRequired.Error(),
		Redirect: RedirectDetailEdit,
		Err:      ErrGuideRequired,
	}
}

// CheckActive rejects workflow changes on cancelled orders.
func CheckActive(o *model.Order) error {
	if o.IsCancelled() {
		return &ValidationError{Field: "status", Message: ErrOrderCancelled.Error(), Err: ErrOrderCancelled}
	}
	return nil
}

// Transition moves o to target, appends the history entry and stamps
// UpdatedAt. Callers have already validated the move.
func Transition(o *model.Order, target Stage, at time.Time) {
	o.FulfillmentStatus = string(target)
	o.FulfillmentHistory = append(o.FulfillmentHistory, model.FulfillmentEntry{
		Status:    string(target),
		Timestamp: at,
	})
	Touch(o, at)
}

// Touch refreshes UpdatedAt so the reconciliation loop sees the change.
func Touch(o *model.Order, at time.Time) {
	t := at
	o.UpdatedAt = &t
}
