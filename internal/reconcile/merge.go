// Package reconcile keeps the terminal's local order store eventually
// consistent with the shared cloud store.
package reconcile

import (
	"giftpos/internal/model"
	"giftpos/internal/workflow"
)

// ShouldApply decides whether remote overwrites local. A nil local means the
// order was created on another terminal and is always inserted.
//
// Remote wins when it is strictly newer, when only remote carries a
// timestamp, or when the fulfillment statuses differ and remote is not
// older. A remote record without a timestamp never overwrites an existing
// local one.
func ShouldApply(local, remote *model.Order) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	if remote.UpdatedAt == nil {
		return false
	}
	if local.UpdatedAt == nil {
		return true
	}
	r, l := *remote.UpdatedAt, *local.UpdatedAt
	if r.After(l) {
		return true
	}
	statusDiffers := workflow.Normalize(remote.FulfillmentStatus) != workflow.Normalize(local.FulfillmentStatus)
	return statusDiffers && !r.Before(l)
}

// Merge returns the record the local store should hold afterwards and
// whether it differs from local. It is a pure function of its inputs.
func Merge(local, remote *model.Order) (*model.Order, bool) {
	if ShouldApply(local, remote) {
		return remote.Clone(), true
	}
	return local, false
}
