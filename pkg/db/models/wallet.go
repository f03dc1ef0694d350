package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// WalletAccount holds the authoritative coin balances of one user.
type WalletAccount struct {
	UserID                  uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance                 int64      `gorm:"column:balance;not null;default:0"`
	RedeemedBalance         int64      `gorm:"column:redeemed_balance;not null;default:0"`
	RewardPoints            int64      `gorm:"column:reward_points;not null;default:0"`
	LifetimeEarned          int64      `gorm:"column:lifetime_earned;not null;default:0"`
	LifetimeSpent           int64      `gorm:"column:lifetime_spent;not null;default:0"`
	FirstPurchaseRewardedAt *time.Time `gorm:"column:first_purchase_rewarded_at"`
	FirstPurchaseOrderID    *uuid.UUID `gorm:"column:first_purchase_order_id;type:uuid"`
	CreatedAt               time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// PoolBalance returns the balance held in the provided pool.
func (a WalletAccount) PoolBalance(pool enums.WalletPool) int64 {
	switch pool {
	case enums.WalletPoolBalance:
		return a.Balance
	case enums.WalletPoolRedeemed:
		return a.RedeemedBalance
	case enums.WalletPoolReward:
		return a.RewardPoints
	default:
		return 0
	}
}

// WalletTransaction is an append-only ledger entry. Amount is signed.
type WalletTransaction struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Pool           enums.WalletPool   `gorm:"column:pool;type:text;not null"`
	Amount         int64              `gorm:"column:amount;not null"`
	Reason         enums.WalletReason `gorm:"column:reason;type:text;not null"`
	OrderID        *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	IdempotencyKey *string            `gorm:"column:idempotency_key;uniqueIndex"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}
