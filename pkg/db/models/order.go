package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

// Order is the buyer-facing parent order produced by one checkout.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID             uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status              enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalPaise       int64               `gorm:"column:subtotal_paise;not null"`
	DeliveryChargePaise int64               `gorm:"column:delivery_charge_paise;not null;default:0"`
	WalletCoinsUsed     int64               `gorm:"column:wallet_coins_used;not null;default:0"`
	RedeemCoinsUsed     int64               `gorm:"column:redeem_coins_used;not null;default:0"`
	RewardPointsUsed    int64               `gorm:"column:reward_points_used;not null;default:0"`
	CouponCode          *string             `gorm:"column:coupon_code"`
	CouponDiscountPaise int64               `gorm:"column:coupon_discount_paise;not null;default:0"`
	TotalPaise          int64               `gorm:"column:total_paise;not null"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentReference    *string             `gorm:"column:payment_reference"`
	GatewayOrderID      *string             `gorm:"column:gateway_order_id"`
	ShippingAddressID   *uuid.UUID          `gorm:"column:shipping_address_id;type:uuid"`
	ShippingAddress     types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	MultiSeller         bool                `gorm:"column:multi_seller;not null;default:false"`
	PlacedAt            time.Time           `gorm:"column:placed_at;not null"`
	SubOrders           []SubOrder          `gorm:"foreignKey:OrderID"`
	Items               []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SubOrder is the seller-specific slice of an order.
type SubOrder struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	SellerID            uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Position            int               `gorm:"column:position;not null;default:0"`
	SubtotalPaise       int64             `gorm:"column:subtotal_paise;not null"`
	DeliveryChargePaise int64             `gorm:"column:delivery_charge_paise;not null;default:0"`
	Status              enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ShippedAt           *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt         *time.Time        `gorm:"column:delivered_at"`
	CancelledAt         *time.Time        `gorm:"column:cancelled_at"`
	Items               []OrderItem       `gorm:"foreignKey:SubOrderID"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
