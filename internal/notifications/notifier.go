package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

// Notifier delivers in-app notifications without ever failing the caller.
type Notifier struct {
	svc  Service
	logg *logger.Logger
}

// NewNotifier wraps the notification service for fire-and-forget use.
func NewNotifier(svc Service, logg *logger.Logger) *Notifier {
	return &Notifier{svc: svc, logg: logg}
}

// NotifyUser stores the notification. Failures are logged and swallowed.
func (n *Notifier) NotifyUser(ctx context.Context, userID uuid.UUID, payload Payload) {
	if n == nil || n.svc == nil {
		return
	}
	if _, err := n.svc.Create(ctx, userID, payload); err != nil && n.logg != nil {
		ctx = n.logg.WithFields(ctx, map[string]any{
			"user_id":           userID.String(),
			"notification_type": string(payload.Type),
		})
		n.logg.Warn(ctx, "notification dropped: "+err.Error())
	}
}
