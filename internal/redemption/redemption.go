// Package redemption holds the state machine that decides how a download
// mutates an entitlement.
package redemption

import (
	"time"

	"hq-entitlements/internal/model"
)

// State is where an order sits in its redemption lifecycle.
type State int

const (
	Issued State = iota
	PartiallyRedeemed
	Used
)

func (s State) String() string {
	switch s {
	case Issued:
		return "issued"
	case PartiallyRedeemed:
		return "partially_redeemed"
	case Used:
		return "used"
	default:
		return "unknown"
	}
}

// StateOf derives the lifecycle state from an order's fields.
func StateOf(o *model.Order) State {
	switch {
	case o.Used:
		return Used
	case len(o.Downloads) == 0:
		return Issued
	default:
		return PartiallyRedeemed
	}
}

// Outcome describes what Apply did to an order.
type Outcome struct {
	// Recorded is true when a new download event was appended.
	Recorded bool
	// BecameUsed is true only for the call that moved the order into Used.
	BecameUsed bool
	// Used is the order's used flag after the call.
	Used bool
	// IntegrityViolation flags an order without items, which can never expire.
	IntegrityViolation bool
}

// Apply records the first download of itemID at now. Replays leave the
// order untouched. The caller must have checked that itemID belongs to
// the order and must hold the order's lock.
func Apply(o *model.Order, itemID string, now time.Time) Outcome {
	wasUsed := o.Used

	if o.IsDownloaded(itemID) {
		return Outcome{Used: o.Used}
	}

	o.Downloads = append(o.Downloads, model.DownloadEvent{
		ItemID:       itemID,
		DownloadedAt: now,
	})

	out := Outcome{Recorded: true}
	if len(o.Items) == 0 {
		out.IntegrityViolation = true
	} else if Covered(o) {
		o.Used = true
	}

	out.Used = o.Used
	out.BecameUsed = !wasUsed && o.Used
	return out
}

// Covered reports whether every purchased item has a download event. An
// order with no items is never covered.
func Covered(o *model.Order) bool {
	if len(o.Items) == 0 {
		return false
	}

	downloaded := make(map[string]struct{}, len(o.Downloads))
	for _, d := range o.Downloads {
		downloaded[d.ItemID] = struct{}{}
	}
	for _, item := range o.Items {
		if _, ok := downloaded[item.ImageID]; !ok {
			return false
		}
	}
	return true
}

// ForceUsed revokes the order regardless of coverage. It returns false
// when the order was already used.
func ForceUsed(o *model.Order) bool {
	if o.Used {
		return false
	}
	o.Used = true
	return true
}
