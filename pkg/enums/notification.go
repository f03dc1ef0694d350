package enums

import "slices"

// NotificationType maps to the notification_type column.
type NotificationType string

const (
	NotificationTypeOrderPlaced        NotificationType = "order_placed"
	NotificationTypeOrderShipped       NotificationType = "order_shipped"
	NotificationTypeOrderCancelled     NotificationType = "order_cancelled"
	NotificationTypeOrderStatus        NotificationType = "order_status"
	NotificationTypeWalletCredited     NotificationType = "wallet_credited"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypeOrderShipped,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderStatus,
	NotificationTypeWalletCredited,
	NotificationTypeSystemAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse(validNotificationTypes, value, "notification type")
}
