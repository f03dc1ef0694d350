package orders

import (
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/payloads"
)

func statusChangedPayload(order *models.Order, subOrderID *uuid.UUID, from, to enums.OrderStatus, actor Actor) payloads.OrderStatusChangedEvent {
	return payloads.OrderStatusChangedEvent{
		OrderID:    order.ID,
		SubOrderID: subOrderID,
		BuyerID:    order.BuyerID,
		From:       from,
		To:         to,
		ActorID:    actor.UserID,
	}
}

func shippedPayload(order *models.Order, subOrderID, sellerID *uuid.UUID) payloads.OrderShippedEvent {
	return payloads.OrderShippedEvent{
		OrderID:    order.ID,
		SubOrderID: subOrderID,
		BuyerID:    order.BuyerID,
		SellerID:   sellerID,
	}
}

func cancelledPayload(order *models.Order, subOrderID, sellerID *uuid.UUID, refunded int64) payloads.OrderCancelledEvent {
	return payloads.OrderCancelledEvent{
		OrderID:       order.ID,
		SubOrderID:    subOrderID,
		BuyerID:       order.BuyerID,
		SellerID:      sellerID,
		RefundedCoins: refunded,
	}
}
