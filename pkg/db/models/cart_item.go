package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a buyer's live cart. CachedPricePaise is display-only.
type CartItem struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID        *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity         int        `gorm:"column:quantity;not null"`
	CachedPricePaise int64      `gorm:"column:cached_price_paise;not null;default:0"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
