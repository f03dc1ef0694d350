package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

// CoinValuePaise is the checkout value of one coin from any pool.
const CoinValuePaise int64 = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes balance reads and ledgered balance changes.
type Service interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)
	Redeem(ctx context.Context, input ApplyInput) (*Result, error)
	RedeemTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*Result, error)
	Credit(ctx context.Context, input ApplyInput) (*Result, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*Result, error)
	ProcessFirstPurchaseReward(ctx context.Context, userID, orderID uuid.UUID) (*Result, error)
	ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionList, error)
	DebitedForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, pool enums.WalletPool) (int64, error)
	RefundedForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, pool enums.WalletPool) (int64, error)
}

// ApplyInput describes one ledgered change. Amount is always positive; the
// operation decides the sign.
type ApplyInput struct {
	UserID         uuid.UUID
	Pool           enums.WalletPool
	Amount         int64
	Reason         enums.WalletReason
	OrderID        *uuid.UUID
	IdempotencyKey string
}

// Result reports the ledger row for an operation and whether this call wrote it.
type Result struct {
	Transaction *models.WalletTransaction
	Applied     bool
}

// Balance is the public view of a wallet account.
type Balance struct {
	UserID                uuid.UUID `json:"user_id"`
	Balance               int64     `json:"balance"`
	RedeemedBalance       int64     `json:"redeemed_balance"`
	RewardPoints          int64     `json:"reward_points"`
	LifetimeEarned        int64     `json:"lifetime_earned"`
	LifetimeSpent         int64     `json:"lifetime_spent"`
	FirstPurchaseRewarded bool      `json:"first_purchase_rewarded"`
}

// Pool returns the coins held in the provided pool.
func (b Balance) Pool(pool enums.WalletPool) int64 {
	switch pool {
	case enums.WalletPoolBalance:
		return b.Balance
	case enums.WalletPoolRedeemed:
		return b.RedeemedBalance
	case enums.WalletPoolReward:
		return b.RewardPoints
	default:
		return 0
	}
}

// ListTransactionsInput carries the cursor query for a user's ledger.
type ListTransactionsInput struct {
	UserID uuid.UUID
	Pool   *enums.WalletPool
	Params pagination.Params
}

// TransactionList is one page of ledger rows.
type TransactionList struct {
	Items      []models.WalletTransaction `json:"items"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

type service struct {
	repo    Repository
	tx      txRunner
	cfg     config.WalletConfig
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

var errAlreadyApplied = errors.New("wallet operation already applied")

// NewService wires the wallet ledger service.
func NewService(repo Repository, tx txRunner, cfg config.WalletConfig, m *metrics.SettlementMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// DebitKey is the ledger idempotency key for an order's debit from one pool.
func DebitKey(pool enums.WalletPool, orderID uuid.UUID) string {
	return fmt.Sprintf("debit:%s:%s", pool, orderID)
}

// RefundKey is the ledger idempotency key for a refund scoped to an order or sub-order.
func RefundKey(pool enums.WalletPool, scopeID uuid.UUID) string {
	return fmt.Sprintf("refund:%s:%s", pool, scopeID)
}

// FirstPurchaseKey is the ledger idempotency key for the one-time reward.
func FirstPurchaseKey(userID uuid.UUID) string {
	return fmt.Sprintf("first_purchase:%s", userID)
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Balance{UserID: userID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet account")
	}
	return toBalance(account), nil
}

func (s *service) Redeem(ctx context.Context, input ApplyInput) (*Result, error) {
	if err := validateApply(input); err != nil {
		return nil, err
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.apply(ctx, s.repo.WithTx(tx), input, -input.Amount)
		return err
	})
	return s.finish(ctx, input, result, err)
}

func (s *service) Credit(ctx context.Context, input ApplyInput) (*Result, error) {
	if err := validateApply(input); err != nil {
		return nil, err
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.apply(ctx, s.repo.WithTx(tx), input, input.Amount)
		return err
	})
	return s.finish(ctx, input, result, err)
}

// RedeemTx applies a debit inside a caller-owned transaction.
func (s *service) RedeemTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*Result, error) {
	if err := validateApply(input); err != nil {
		return nil, err
	}
	return s.applyTx(ctx, tx, input, -input.Amount)
}

// CreditTx applies a credit inside a caller-owned transaction so the ledger row
// commits or rolls back with the caller's writes.
func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*Result, error) {
	if err := validateApply(input); err != nil {
		return nil, err
	}
	return s.applyTx(ctx, tx, input, input.Amount)
}

// applyTx cannot resolve a lost key race inside the caller's transaction, so
// it reports a conflict and the caller retries.
func (s *service) applyTx(ctx context.Context, tx *gorm.DB, input ApplyInput, signed int64) (*Result, error) {
	result, err := s.apply(ctx, s.repo.WithTx(tx), input, signed)
	if errors.Is(err, errAlreadyApplied) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent wallet operation")
	}
	if err != nil {
		outcome := "error"
		if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
			outcome = "insufficient"
		}
		s.metrics.IncWalletOperation(input.Pool.String(), input.Reason.String(), outcome)
		return nil, err
	}
	s.record(ctx, input, result)
	return result, nil
}

func (s *service) ProcessFirstPurchaseReward(ctx context.Context, userID, orderID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	amount := s.cfg.FirstPurchaseRewardCoins
	if amount <= 0 {
		return &Result{}, nil
	}

	input := ApplyInput{
		UserID:         userID,
		Pool:           enums.WalletPoolBalance,
		Amount:         amount,
		Reason:         enums.WalletReasonFirstPurchaseReward,
		OrderID:        &orderID,
		IdempotencyKey: FirstPurchaseKey(userID),
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.EnsureAccount(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure wallet account")
		}
		marked, err := repo.MarkFirstPurchaseRewarded(ctx, userID, orderID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark first purchase reward")
		}
		if !marked {
			existing, err := repo.FindTransactionByKey(ctx, input.IdempotencyKey)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load first purchase reward")
			}
			result = &Result{Transaction: existing}
			return nil
		}
		result, err = s.apply(ctx, repo, input, amount)
		return err
	})
	return s.finish(ctx, input, result, err)
}

func (s *service) ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionList, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListTransactions(ctx, listTransactionsParams{
		UserID: input.UserID,
		Pool:   input.Pool,
		Limit:  input.Params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	if rows == nil {
		rows = []models.WalletTransaction{}
	}
	return &TransactionList{Items: rows, NextCursor: pagination.EncodeCursor(next)}, nil
}

// DebitedForOrder returns the positive number of coins debited from a pool for an order.
func (s *service) DebitedForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, pool enums.WalletPool) (int64, error) {
	sum, err := s.repo.WithTx(tx).SumByOrder(ctx, userID, orderID, pool, enums.WalletReasonOrderDebit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum order debits")
	}
	return -sum, nil
}

// RefundedForOrder returns the coins already refunded to a pool for an order.
func (s *service) RefundedForOrder(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, pool enums.WalletPool) (int64, error) {
	sum, err := s.repo.WithTx(tx).SumByOrder(ctx, userID, orderID, pool, enums.WalletReasonOrderRefund)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum order refunds")
	}
	return sum, nil
}

// apply writes the ledger row first so the unique idempotency key claims the
// operation, then moves the balance with a conditional update.
func (s *service) apply(ctx context.Context, repo Repository, input ApplyInput, signed int64) (*Result, error) {
	var key *string
	if input.IdempotencyKey != "" {
		existing, err := repo.FindTransactionByKey(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet transaction")
		}
		if existing != nil {
			return &Result{Transaction: existing}, nil
		}
		k := input.IdempotencyKey
		key = &k
	}

	if err := repo.EnsureAccount(ctx, input.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure wallet account")
	}

	txn := &models.WalletTransaction{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Pool:           input.Pool,
		Amount:         signed,
		Reason:         input.Reason,
		OrderID:        input.OrderID,
		IdempotencyKey: key,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, errAlreadyApplied
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet transaction")
	}

	if signed < 0 {
		if err := repo.DebitPool(ctx, input.UserID, input.Pool, -signed); err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient wallet balance").
					WithDetails(map[string]any{"pool": input.Pool, "requested": -signed})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet pool")
		}
	} else {
		reversal := input.Reason == enums.WalletReasonOrderRefund
		if err := repo.CreditPool(ctx, input.UserID, input.Pool, signed, reversal); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet pool")
		}
	}
	return &Result{Transaction: txn, Applied: true}, nil
}

// finish resolves a lost idempotency race into the winning row and records metrics.
func (s *service) finish(ctx context.Context, input ApplyInput, result *Result, err error) (*Result, error) {
	if errors.Is(err, errAlreadyApplied) {
		existing, findErr := s.repo.FindTransactionByKey(ctx, input.IdempotencyKey)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load wallet transaction")
		}
		result, err = &Result{Transaction: existing}, nil
	}
	if err != nil {
		outcome := "error"
		if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
			outcome = "insufficient"
		}
		s.metrics.IncWalletOperation(input.Pool.String(), input.Reason.String(), outcome)
		return nil, err
	}
	s.record(ctx, input, result)
	return result, nil
}

func (s *service) record(ctx context.Context, input ApplyInput, result *Result) {
	outcome := "replayed"
	if result != nil && result.Applied {
		outcome = "applied"
	} else if s.logg != nil && input.IdempotencyKey != "" {
		s.logg.Debug(s.logg.WithField(ctx, "idempotency_key", input.IdempotencyKey), "wallet operation already applied")
	}
	s.metrics.IncWalletOperation(input.Pool.String(), input.Reason.String(), outcome)
}

func validateApply(input ApplyInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Pool.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet pool %q", input.Pool))
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet reason %q", input.Reason))
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func toBalance(account *models.WalletAccount) *Balance {
	return &Balance{
		UserID:                account.UserID,
		Balance:               account.Balance,
		RedeemedBalance:       account.RedeemedBalance,
		RewardPoints:          account.RewardPoints,
		LifetimeEarned:        account.LifetimeEarned,
		LifetimeSpent:         account.LifetimeSpent,
		FirstPurchaseRewarded: account.FirstPurchaseRewardedAt != nil,
	}
}
