package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// Quote is a resolved coupon discount for one subtotal.
type Quote struct {
	CouponID      uuid.UUID `json:"coupon_id"`
	Code          string    `json:"code"`
	DiscountPaise int64     `json:"discount_paise"`
}

// Service resolves and consumes coupons.
type Service interface {
	Resolve(ctx context.Context, code string, subtotalPaise int64) (*Quote, error)
	Consume(ctx context.Context, tx *gorm.DB, quote *Quote) error
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Resolve(ctx context.Context, code string, subtotalPaise int64) (*Quote, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if reason := unusableReason(coupon, subtotalPaise, s.now()); reason != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon cannot be applied").
			WithDetails(map[string]string{"code": coupon.Code, "reason": reason})
	}
	return &Quote{
		CouponID:      coupon.ID,
		Code:          coupon.Code,
		DiscountPaise: DiscountFor(coupon, subtotalPaise),
	}, nil
}

// Consume records one use of the coupon in the caller's transaction.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, quote *Quote) error {
	if quote == nil {
		return nil
	}
	ok, err := s.repo.WithTx(tx).Consume(ctx, quote.CouponID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume coupon")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is no longer available").
			WithDetails(map[string]string{"code": quote.Code})
	}
	return nil
}

func unusableReason(coupon *models.Coupon, subtotalPaise int64, now time.Time) string {
	switch {
	case !coupon.Active:
		return "inactive"
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return "not_started"
	case coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt):
		return "expired"
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return "usage_limit_reached"
	case subtotalPaise < coupon.MinOrderPaise:
		return "below_minimum_order"
	}
	return ""
}

// DiscountFor returns the coupon's discount on a subtotal, capped by the
// coupon maximum and by the subtotal itself.
func DiscountFor(coupon *models.Coupon, subtotalPaise int64) int64 {
	var discount int64
	switch coupon.Kind {
	case enums.CouponKindFlat:
		discount = coupon.Value
	case enums.CouponKindPercent:
		discount = subtotalPaise * coupon.Value / 100
	}
	if coupon.MaxDiscountPaise != nil && discount > *coupon.MaxDiscountPaise {
		discount = *coupon.MaxDiscountPaise
	}
	if discount > subtotalPaise {
		discount = subtotalPaise
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
