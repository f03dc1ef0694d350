package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem captures the purchase-time snapshot of a cart line.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SubOrderID     uuid.UUID       `gorm:"column:sub_order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	SellerID       uuid.UUID       `gorm:"column:seller_id;type:uuid;not null"`
	Position       int             `gorm:"column:position;not null;default:0"`
	Title          string          `gorm:"column:title;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPricePaise int64           `gorm:"column:unit_price_paise;not null"`
	GSTRate        decimal.Decimal `gorm:"column:gst_rate;type:numeric(5,2);not null"`
	LineTotalPaise int64           `gorm:"column:line_total_paise;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
