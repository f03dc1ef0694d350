package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

type orderItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	SubOrderID     uuid.UUID       `json:"sub_order_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	VariantID      *uuid.UUID      `json:"variant_id,omitempty"`
	SellerID       uuid.UUID       `json:"seller_id"`
	Title          string          `json:"title"`
	Quantity       int             `json:"quantity"`
	UnitPricePaise int64           `json:"unit_price_paise"`
	GSTRate        decimal.Decimal `json:"gst_rate"`
	LineTotalPaise int64           `json:"line_total_paise"`
}

type subOrderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	OrderID             uuid.UUID           `json:"order_id"`
	SellerID            uuid.UUID           `json:"seller_id"`
	Status              enums.OrderStatus   `json:"status"`
	SubtotalPaise       int64               `json:"subtotal_paise"`
	DeliveryChargePaise int64               `json:"delivery_charge_paise"`
	ShippedAt           *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt         *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty"`
	Items               []orderItemResponse `json:"items"`
}

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	BuyerID             uuid.UUID           `json:"buyer_id"`
	Status              enums.OrderStatus   `json:"status"`
	SubtotalPaise       int64               `json:"subtotal_paise"`
	DeliveryChargePaise int64               `json:"delivery_charge_paise"`
	WalletCoinsUsed     int64               `json:"wallet_coins_used"`
	RedeemCoinsUsed     int64               `json:"redeem_coins_used"`
	RewardPointsUsed    int64               `json:"reward_points_used"`
	CouponCode          *string             `json:"coupon_code,omitempty"`
	CouponDiscountPaise int64               `json:"coupon_discount_paise"`
	TotalPaise          int64               `json:"total_paise"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	PaymentReference    *string             `json:"payment_reference,omitempty"`
	ShippingAddressID   *uuid.UUID          `json:"shipping_address_id,omitempty"`
	ShippingAddress     types.Address       `json:"shipping_address"`
	MultiSeller         bool                `json:"multi_seller"`
	PlacedAt            time.Time           `json:"placed_at"`
	SubOrders           []subOrderResponse  `json:"sub_orders"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type subOrderListResponse struct {
	SubOrders  []subOrderResponse `json:"sub_orders"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func newOrderItemResponse(item models.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:             item.ID,
		SubOrderID:     item.SubOrderID,
		ProductID:      item.ProductID,
		VariantID:      item.VariantID,
		SellerID:       item.SellerID,
		Title:          item.Title,
		Quantity:       item.Quantity,
		UnitPricePaise: item.UnitPricePaise,
		GSTRate:        item.GSTRate,
		LineTotalPaise: item.LineTotalPaise,
	}
}

// newSubOrderResponse falls back to the parent's item list when the
// sub-order was loaded without its own items.
func newSubOrderResponse(sub models.SubOrder, orderItems []models.OrderItem) subOrderResponse {
	source := sub.Items
	if len(source) == 0 {
		for _, item := range orderItems {
			if item.SubOrderID == sub.ID {
				source = append(source, item)
			}
		}
	}
	items := make([]orderItemResponse, 0, len(source))
	for _, item := range source {
		items = append(items, newOrderItemResponse(item))
	}
	return subOrderResponse{
		ID:                  sub.ID,
		OrderID:             sub.OrderID,
		SellerID:            sub.SellerID,
		Status:              sub.Status,
		SubtotalPaise:       sub.SubtotalPaise,
		DeliveryChargePaise: sub.DeliveryChargePaise,
		ShippedAt:           sub.ShippedAt,
		DeliveredAt:         sub.DeliveredAt,
		CancelledAt:         sub.CancelledAt,
		Items:               items,
	}
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	subs := make([]subOrderResponse, 0, len(order.SubOrders))
	for _, sub := range order.SubOrders {
		subs = append(subs, newSubOrderResponse(sub, order.Items))
	}
	return orderResponse{
		ID:                  order.ID,
		BuyerID:             order.BuyerID,
		Status:              order.Status,
		SubtotalPaise:       order.SubtotalPaise,
		DeliveryChargePaise: order.DeliveryChargePaise,
		WalletCoinsUsed:     order.WalletCoinsUsed,
		RedeemCoinsUsed:     order.RedeemCoinsUsed,
		RewardPointsUsed:    order.RewardPointsUsed,
		CouponCode:          order.CouponCode,
		CouponDiscountPaise: order.CouponDiscountPaise,
		TotalPaise:          order.TotalPaise,
		PaymentMethod:       order.PaymentMethod,
		PaymentReference:    order.PaymentReference,
		ShippingAddressID:   order.ShippingAddressID,
		ShippingAddress:     order.ShippingAddress,
		MultiSeller:         order.MultiSeller,
		PlacedAt:            order.PlacedAt,
		SubOrders:           subs,
	}
}

type walletTransactionResponse struct {
	ID        uuid.UUID          `json:"id"`
	Pool      enums.WalletPool   `json:"pool"`
	Amount    int64              `json:"amount"`
	Reason    enums.WalletReason `json:"reason"`
	OrderID   *uuid.UUID         `json:"order_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type walletTransactionListResponse struct {
	Items      []walletTransactionResponse `json:"items"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

func newWalletTransactionResponse(tx models.WalletTransaction) walletTransactionResponse {
	return walletTransactionResponse{
		ID:        tx.ID,
		Pool:      tx.Pool,
		Amount:    tx.Amount,
		Reason:    tx.Reason,
		OrderID:   tx.OrderID,
		CreatedAt: tx.CreatedAt,
	}
}

type notificationResponse struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Link      *string                `json:"link,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type notificationListResponse struct {
	Items  []notificationResponse `json:"items"`
	Cursor string                 `json:"cursor,omitempty"`
}

func newNotificationResponse(n models.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type addressResponse struct {
	ID uuid.UUID `json:"id"`
	types.Address
	CreatedAt time.Time `json:"created_at"`
}

func newAddressResponse(a models.Address) addressResponse {
	return addressResponse{ID: a.ID, Address: a.Snapshot(), CreatedAt: a.CreatedAt}
}
