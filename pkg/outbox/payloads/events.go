package payloads

import (
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// OrderPlacedEvent is emitted in the checkout transaction once the order and
// its sub-orders are persisted.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SubOrderIDs   []uuid.UUID         `json:"sub_order_ids"`
	SellerIDs     []uuid.UUID         `json:"seller_ids"`
	TotalPaise    int64               `json:"total_paise"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	MultiSeller   bool                `json:"multi_seller"`
}

// WalletDebit is one pool debit owed by an order.
type WalletDebit struct {
	Pool   enums.WalletPool `json:"pool"`
	Amount int64            `json:"amount"`
}

// WalletDebitRequestedEvent carries the coin debits an order still owes.
type WalletDebitRequestedEvent struct {
	OrderID uuid.UUID     `json:"order_id"`
	BuyerID uuid.UUID     `json:"buyer_id"`
	Debits  []WalletDebit `json:"debits"`
}

// OrderStatusChangedEvent records a status write on an order or sub-order.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	SubOrderID *uuid.UUID        `json:"sub_order_id,omitempty"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	ActorID    uuid.UUID         `json:"actor_id"`
}

// OrderShippedEvent fans out the shipped notification and email.
type OrderShippedEvent struct {
	OrderID    uuid.UUID  `json:"order_id"`
	SubOrderID *uuid.UUID `json:"sub_order_id,omitempty"`
	BuyerID    uuid.UUID  `json:"buyer_id"`
	SellerID   *uuid.UUID `json:"seller_id,omitempty"`
}

// OrderCancelledEvent fans out the cancellation notification and email.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	SubOrderID    *uuid.UUID `json:"sub_order_id,omitempty"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	SellerID      *uuid.UUID `json:"seller_id,omitempty"`
	RefundedCoins int64      `json:"refunded_coins"`
}
