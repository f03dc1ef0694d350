package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// Product is a seller listing. Prices are GST-inclusive.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string              `gorm:"column:title;not null"`
	PricePaise int64               `gorm:"column:price_paise;not null"`
	GSTRate    decimal.Decimal     `gorm:"column:gst_rate;type:numeric(5,2);not null"`
	Stock      int                 `gorm:"column:stock;not null;default:0"`
	Status     enums.ProductStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Variants   []ProductVariant    `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}

// ProductVariant overrides price and tracks its own stock.
type ProductVariant struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID      `gorm:"column:product_id;type:uuid;not null;index"`
	Label      string         `gorm:"column:label;not null"`
	PricePaise *int64         `gorm:"column:price_paise"`
	Stock      int            `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
