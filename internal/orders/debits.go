package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/payloads"
)

// DeferredDebit is the coin debit an order still owes after checkout.
type DeferredDebit struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Debits  []payloads.WalletDebit
}

// DebitSettlement reports what a settle call changed.
type DebitSettlement struct {
	// Skipped is set when the order was cancelled before the debit applied.
	Skipped  bool
	Refunded int64
}

// SettleWalletDebit applies the owed debit under the order lock, then credits
// the refunds of anything already cancelled. A cancellation that ran before
// the debit found nothing to refund; its share is credited here under the
// same ledger key, so a share is never paid twice.
func (s *service) SettleWalletDebit(ctx context.Context, input DeferredDebit) (*DebitSettlement, error) {
	if input.OrderID == uuid.Nil || input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and buyer id are required")
	}

	out := &DebitSettlement{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, input.OrderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "debit buyer does not own the order")
		}

		// A cancelled parent refunds through its remainder only; fanned-out
		// children never took a share.
		if order.Status == enums.OrderStatusCancelled {
			out.Skipped = true
			amount, err := s.refundRemainder(ctx, tx, order)
			if err != nil {
				return err
			}
			out.Refunded = amount
			return nil
		}
		if err := s.redeemTx(ctx, tx, input); err != nil {
			return err
		}

		subs, err := repo.ListSubOrders(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
		}
		for i := range subs {
			if subs[i].Status != enums.OrderStatusCancelled {
				continue
			}
			amount, err := s.refundShare(ctx, tx, order, &subs[i])
			if err != nil {
				return err
			}
			out.Refunded += amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil && out.Refunded > 0 {
		logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
		s.logg.Info(s.logg.WithField(logCtx, "refunded_coins", out.Refunded), "late debit refunded cancelled items")
	}
	return out, nil
}

func (s *service) redeemTx(ctx context.Context, tx *gorm.DB, input DeferredDebit) error {
	for _, debit := range input.Debits {
		if debit.Amount <= 0 {
			continue
		}
		orderID := input.OrderID
		if _, err := s.wallet.RedeemTx(ctx, tx, wallet.ApplyInput{
			UserID:         input.BuyerID,
			Pool:           debit.Pool,
			Amount:         debit.Amount,
			Reason:         enums.WalletReasonOrderDebit,
			OrderID:        &orderID,
			IdempotencyKey: wallet.DebitKey(debit.Pool, input.OrderID),
		}); err != nil {
			return err
		}
	}
	return nil
}
