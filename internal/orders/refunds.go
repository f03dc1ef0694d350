package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// refundShare credits the cancelled sub-order's proportional share of every
// pool debited for the order, never more than is still unrefunded. Shares
// are floored; the parent collects the remainder once it is cancelled.
func (s *service) refundShare(ctx context.Context, tx *gorm.DB, order *models.Order, sub *models.SubOrder) (int64, error) {
	if order.SubtotalPaise <= 0 {
		return 0, nil
	}
	var total int64
	for _, pool := range enums.WalletPools() {
		debited, err := s.wallet.DebitedForOrder(ctx, tx, order.BuyerID, order.ID, pool)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order debit")
		}
		if debited <= 0 {
			continue
		}
		refunded, err := s.wallet.RefundedForOrder(ctx, tx, order.BuyerID, order.ID, pool)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order refunds")
		}
		share := min(ProportionalShare(debited, sub.SubtotalPaise, order.SubtotalPaise), debited-refunded)
		if share <= 0 {
			continue
		}
		applied, err := s.credit(ctx, tx, order, pool, share, wallet.RefundKey(pool, sub.ID))
		if err != nil {
			return 0, err
		}
		total += applied
	}
	return total, nil
}

// refundRemainder credits whatever part of each pool's debit has not been
// refunded yet.
func (s *service) refundRemainder(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error) {
	var total int64
	for _, pool := range enums.WalletPools() {
		debited, err := s.wallet.DebitedForOrder(ctx, tx, order.BuyerID, order.ID, pool)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order debit")
		}
		if debited <= 0 {
			continue
		}
		refunded, err := s.wallet.RefundedForOrder(ctx, tx, order.BuyerID, order.ID, pool)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order refunds")
		}
		remainder := debited - refunded
		if remainder <= 0 {
			continue
		}
		applied, err := s.credit(ctx, tx, order, pool, remainder, wallet.RefundKey(pool, order.ID))
		if err != nil {
			return 0, err
		}
		total += applied
	}
	return total, nil
}

func (s *service) credit(ctx context.Context, tx *gorm.DB, order *models.Order, pool enums.WalletPool, amount int64, key string) (int64, error) {
	orderID := order.ID
	res, err := s.wallet.CreditTx(ctx, tx, wallet.ApplyInput{
		UserID:         order.BuyerID,
		Pool:           pool,
		Amount:         amount,
		Reason:         enums.WalletReasonOrderRefund,
		OrderID:        &orderID,
		IdempotencyKey: key,
	})
	if err != nil {
		return 0, err
	}
	if !res.Applied {
		return 0, nil
	}
	return amount, nil
}

// ProportionalShare returns floor(amount * part / whole).
func ProportionalShare(amount, part, whole int64) int64 {
	if amount <= 0 || part <= 0 || whole <= 0 {
		return 0
	}
	if part >= whole {
		return amount
	}
	return amount * part / whole
}
