package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

// ErrInsufficientFunds is returned when a conditional debit matched no row.
var ErrInsufficientFunds = errors.New("wallet pool balance too low")

// Repository manages wallet accounts and the append-only transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	FindAccount(ctx context.Context, userID uuid.UUID) (*models.WalletAccount, error)
	DebitPool(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64) error
	CreditPool(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64, reversal bool) error
	InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransactionByKey(ctx context.Context, key string) (*models.WalletTransaction, error)
	SumByOrder(ctx context.Context, userID, orderID uuid.UUID, pool enums.WalletPool, reason enums.WalletReason) (int64, error)
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error)
	MarkFirstPurchaseRewarded(ctx context.Context, userID, orderID uuid.UUID, at time.Time) (bool, error)
	ListAccounts(ctx context.Context, after uuid.UUID, limit int) ([]models.WalletAccount, error)
	LedgerTotals(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]map[enums.WalletPool]int64, error)
}

type listTransactionsParams struct {
	UserID uuid.UUID
	Pool   *enums.WalletPool
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// poolColumn maps a pool onto its balance column. Only whitelisted names reach SQL.
func poolColumn(pool enums.WalletPool) (string, error) {
	switch pool {
	case enums.WalletPoolBalance:
		return "balance", nil
	case enums.WalletPoolRedeemed:
		return "redeemed_balance", nil
	case enums.WalletPoolReward:
		return "reward_points", nil
	default:
		return "", fmt.Errorf("unknown wallet pool %q", pool)
	}
}

func (r *repository) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	account := &models.WalletAccount{UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(account).Error
}

func (r *repository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.WalletAccount, error) {
	var account models.WalletAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) DebitPool(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64) error {
	column, err := poolColumn(pool)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("user_id = ?", userID).
		Where(column+" >= ?", amount).
		Updates(map[string]any{
			column:           gorm.Expr(column+" - ?", amount),
			"lifetime_spent": gorm.Expr("lifetime_spent + ?", amount),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// CreditPool adds coins to a pool. A reversal unwinds lifetime_spent instead of
// growing lifetime_earned.
func (r *repository) CreditPool(ctx context.Context, userID uuid.UUID, pool enums.WalletPool, amount int64, reversal bool) error {
	column, err := poolColumn(pool)
	if err != nil {
		return err
	}
	updates := map[string]any{
		column:       gorm.Expr(column+" + ?", amount),
		"updated_at": time.Now().UTC(),
	}
	if reversal {
		updates["lifetime_spent"] = gorm.Expr("CASE WHEN lifetime_spent >= ? THEN lifetime_spent - ? ELSE 0 END", amount, amount)
	} else {
		updates["lifetime_earned"] = gorm.Expr("lifetime_earned + ?", amount)
	}
	res := r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransactionByKey(ctx context.Context, key string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Limit(1).
		Find(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == uuid.Nil {
		return nil, nil
	}
	return &txn, nil
}

func (r *repository) SumByOrder(ctx context.Context, userID, orderID uuid.UUID, pool enums.WalletPool, reason enums.WalletReason) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND order_id = ? AND pool = ? AND reason = ?", userID, orderID, pool, reason).
		Scan(&total).Error
	return total, err
}

func (r *repository) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ?", params.UserID)
	if params.Pool != nil {
		query = query.Where("pool = ?", *params.Pool)
	}

	var rows []models.WalletTransaction
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(t models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return rows, next, nil
}

func (r *repository) MarkFirstPurchaseRewarded(ctx context.Context, userID, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("user_id = ? AND first_purchase_rewarded_at IS NULL", userID).
		Updates(map[string]any{
			"first_purchase_rewarded_at": at,
			"first_purchase_order_id":    orderID,
			"updated_at":                 at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListAccounts(ctx context.Context, after uuid.UUID, limit int) ([]models.WalletAccount, error) {
	var accounts []models.WalletAccount
	query := r.db.WithContext(ctx).Model(&models.WalletAccount{})
	if after != uuid.Nil {
		query = query.Where("user_id > ?", after)
	}
	if err := query.Order("user_id ASC").Limit(limit).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

type ledgerTotalRow struct {
	UserID uuid.UUID
	Pool   enums.WalletPool
	Total  int64
}

func (r *repository) LedgerTotals(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]map[enums.WalletPool]int64, error) {
	out := make(map[uuid.UUID]map[enums.WalletPool]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []ledgerTotalRow
	if err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("user_id, pool, COALESCE(SUM(amount), 0) AS total").
		Where("user_id IN ?", userIDs).
		Group("user_id, pool").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if out[row.UserID] == nil {
			out[row.UserID] = make(map[enums.WalletPool]int64, 3)
		}
		out[row.UserID][row.Pool] = row.Total
	}
	return out, nil
}
