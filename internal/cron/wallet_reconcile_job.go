package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

type walletReconciler interface {
	Run(ctx context.Context) (wallet.ReconcileReport, error)
}

type WalletReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler walletReconciler
}

func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("wallet reconciler required")
	}
	return &walletReconcileJob{logg: params.Logger, reconciler: params.Reconciler}, nil
}

type walletReconcileJob struct {
	logg       *logger.Logger
	reconciler walletReconciler
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

// Run compares balances with the ledger and reports every drifting pool.
// Balances are never corrected here; drift fails the job so it is counted.
func (j *walletReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("wallet reconcile: %w", err)
	}

	var drift error
	for _, d := range report.Drifts {
		driftCtx := j.logg.WithUserID(ctx, d.UserID.String())
		driftCtx = j.logg.WithFields(driftCtx, map[string]any{
			"pool":    d.Pool,
			"balance": d.Balance,
			"ledger":  d.Ledger,
			"alert":   true,
		})
		j.logg.Warn(driftCtx, "wallet balance drifted from ledger")
		drift = multierr.Append(drift, fmt.Errorf("user %s pool %s: balance %d ledger %d", d.UserID, d.Pool, d.Balance, d.Ledger))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"accounts": report.Accounts,
		"drifts":   len(report.Drifts),
	})
	j.logg.Info(logCtx, "wallet reconciliation complete")
	return drift
}
