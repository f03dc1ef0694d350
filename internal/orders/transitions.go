package orders

import "github.com/haatbazaar/marketplace-backend/pkg/enums"

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:       {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:    {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:       {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:     {enums.OrderStatusApproveReturn, enums.OrderStatusRejectReturn},
	enums.OrderStatusApproveReturn: {enums.OrderStatusProcessReturn, enums.OrderStatusRejectReturn},
	enums.OrderStatusProcessReturn: {enums.OrderStatusCompletedReturn},
}

// CanTransition reports whether from may move to to. Rewriting the current
// status is handled by callers as a no-op and is not an edge here.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves status.
func IsTerminal(status enums.OrderStatus) bool {
	return len(allowedTransitions[status]) == 0
}

// aggregateStatus derives the parent status from fresh sibling statuses.
// ok is false when the parent must be left unchanged.
func aggregateStatus(multiSeller bool, siblings []enums.OrderStatus) (enums.OrderStatus, bool) {
	if len(siblings) == 0 {
		return "", false
	}
	if !multiSeller {
		return siblings[0], true
	}
	first := siblings[0]
	for _, status := range siblings[1:] {
		if status != first {
			return "", false
		}
	}
	return first, true
}
