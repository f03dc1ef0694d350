package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email     string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name      string          `gorm:"column:name;not null"`
	Phone     *string         `gorm:"column:phone"`
	Role      enums.ActorRole `gorm:"column:role;type:text;not null;default:'buyer'"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// SellerProfile carries the registration details used for invoicing.
type SellerProfile struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	BusinessName string    `gorm:"column:business_name;not null"`
	State        string    `gorm:"column:state;not null"`
	GSTIN        *string   `gorm:"column:gstin"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
