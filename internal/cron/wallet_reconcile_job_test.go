package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

type fakeReconciler struct {
	report wallet.ReconcileReport
	err    error
}

func (f fakeReconciler) Run(context.Context) (wallet.ReconcileReport, error) {
	return f.report, f.err
}

func newWalletReconcileJob(t *testing.T, reconciler walletReconciler) Job {
	t.Helper()
	job, err := NewWalletReconcileJob(WalletReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Reconciler: reconciler,
	})
	if err != nil {
		t.Fatalf("NewWalletReconcileJob: %v", err)
	}
	return job
}

func TestWalletReconcileJobPassesWithoutDrift(t *testing.T) {
	job := newWalletReconcileJob(t, fakeReconciler{report: wallet.ReconcileReport{Accounts: 3}})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWalletReconcileJobReportsEveryDrift(t *testing.T) {
	job := newWalletReconcileJob(t, fakeReconciler{report: wallet.ReconcileReport{
		Accounts: 2,
		Drifts: []wallet.Drift{
			{UserID: uuid.New(), Pool: enums.WalletPoolBalance, Balance: 100, Ledger: 90},
			{UserID: uuid.New(), Pool: enums.WalletPoolReward, Balance: 0, Ledger: 5},
		},
	}})

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected drift error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 drift errors, got %d", got)
	}
}

func TestWalletReconcileJobPropagatesError(t *testing.T) {
	job := newWalletReconcileJob(t, fakeReconciler{err: errors.New("boom")})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewWalletReconcileJobRequiresReconciler(t *testing.T) {
	_, err := NewWalletReconcileJob(WalletReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
