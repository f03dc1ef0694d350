package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// Drift is a pool whose stored balance disagrees with the signed ledger sum.
type Drift struct {
	UserID  uuid.UUID        `json:"user_id"`
	Pool    enums.WalletPool `json:"pool"`
	Balance int64            `json:"balance"`
	Ledger  int64            `json:"ledger"`
}

// ReconcileReport summarizes one full pass over wallet accounts.
type ReconcileReport struct {
	Accounts int
	Drifts   []Drift
}

// Reconciler walks every account in user id order and compares balances to the ledger.
type Reconciler struct {
	repo      Repository
	batchSize int
}

// NewReconciler returns a reconciler reading through the provided repository.
func NewReconciler(repo Repository, batchSize int) (*Reconciler, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Reconciler{repo: repo, batchSize: batchSize}, nil
}

// Run performs the pass. It never mutates balances.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		accounts, err := r.repo.ListAccounts(ctx, after, r.batchSize)
		if err != nil {
			return report, fmt.Errorf("list wallet accounts: %w", err)
		}
		if len(accounts) == 0 {
			return report, nil
		}

		ids := make([]uuid.UUID, 0, len(accounts))
		for _, account := range accounts {
			ids = append(ids, account.UserID)
		}
		totals, err := r.repo.LedgerTotals(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("sum wallet ledger: %w", err)
		}

		for _, account := range accounts {
			for _, pool := range enums.WalletPools() {
				stored := account.PoolBalance(pool)
				ledger := totals[account.UserID][pool]
				if stored != ledger {
					report.Drifts = append(report.Drifts, Drift{
						UserID:  account.UserID,
						Pool:    pool,
						Balance: stored,
						Ledger:  ledger,
					})
				}
			}
		}
		report.Accounts += len(accounts)
		after = accounts[len(accounts)-1].UserID
		if len(accounts) < r.batchSize {
			return report, nil
		}
	}
}
