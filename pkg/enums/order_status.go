package enums

import "slices"

// OrderStatus tracks the lifecycle shared by parent orders and sub-orders.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusApproveReturn   OrderStatus = "approve_return"
	OrderStatusProcessReturn   OrderStatus = "process_return"
	OrderStatusCompletedReturn OrderStatus = "completed_return"
	OrderStatusRejectReturn    OrderStatus = "reject_return"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusApproveReturn,
	OrderStatusProcessReturn,
	OrderStatusCompletedReturn,
	OrderStatusRejectReturn,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	return slices.Contains(validOrderStatuses, s)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(validOrderStatuses, value, "order status")
}
