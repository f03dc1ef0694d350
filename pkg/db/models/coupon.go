package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// Coupon is a code-based discount. Value is paise for flat coupons and
// whole percent for percent coupons.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.CouponKind `gorm:"column:kind;type:text;not null"`
	Value            int64            `gorm:"column:value;not null"`
	MaxDiscountPaise *int64           `gorm:"column:max_discount_paise"`
	MinOrderPaise    int64            `gorm:"column:min_order_paise;not null;default:0"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	StartsAt         *time.Time       `gorm:"column:starts_at"`
	ExpiresAt        *time.Time       `gorm:"column:expires_at"`
	UsageLimit       *int             `gorm:"column:usage_limit"`
	UsedCount        int              `gorm:"column:used_count;not null;default:0"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
