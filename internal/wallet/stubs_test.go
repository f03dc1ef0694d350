package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	findAccountFn          func(ctx context.Context, userID uuid.UUID) (*models.WalletAccount, error)
	debitPoolFn            func(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64) error
	creditPoolFn           func(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64, reversal bool) error
	insertTransactionFn    func(ctx context.Context, txn *models.WalletTransaction) error
	findTransactionByKeyFn func(ctx context.Context, key string) (*models.WalletTransaction, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) EnsureAccount(ctx context.Context, userID uuid.UUID) error { return nil }

func (f *fakeRepository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.WalletAccount, error) {
	if f.findAccountFn != nil {
		return f.findAccountFn(ctx, userID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) DebitPool(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64) error {
	if f.debitPoolFn != nil {
		return f.debitPoolFn(ctx, userID, pool, amount)
	}
	return nil
}

func (f *fakeRepository) CreditPool(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64, reversal bool) error {
	if f.creditPoolFn != nil {
		return f.creditPoolFn(ctx, userID, pool, amount, reversal)
	}
	return nil
}

func (f *fakeRepository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	if f.insertTransactionFn != nil {
		return f.insertTransactionFn(ctx, txn)
	}
	return nil
}

func (f *fakeRepository) FindTransactionByKey(ctx context.Context, key string) (*models.WalletTransaction, error) {
	if f.findTransactionByKeyFn != nil {
		return f.findTransactionByKeyFn(ctx, key)
	}
	return nil, nil
}

func (f *fakeRepository) SumByOrder(ctx context.Context, userID, orderID uuid.UUID, pool enums.WalletPool, reason enums.WalletReason) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeRepository) MarkFirstPurchaseRewarded(ctx context.Context, userID, orderID uuid.UUID, at time.Time) (bool, error) {
	return true, nil
}

func (f *fakeRepository) ListAccounts(ctx context.Context, after uuid.UUID, limit int) ([]models.WalletAccount, error) {
	return nil, nil
}

func (f *fakeRepository) LedgerTotals(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]map[enums.WalletPool]int64, error) {
	return map[uuid.UUID]map[enums.WalletPool]int64{}, nil
}
