package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks checkout outcomes and post-commit bookkeeping.
type SettlementMetrics struct {
	checkouts        *prometheus.CounterVec
	postCommitFailed *prometheus.CounterVec
	walletOps        *prometheus.CounterVec
	statusWrites     *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement collectors. A nil registerer
// returns a no-op instance.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts partitioned by outcome code.",
	}, []string{"outcome"})
	postCommitFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_post_commit_failures_total",
		Help: "Post-commit steps that failed after the order was persisted.",
	}, []string{"step"})
	walletOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet ledger writes partitioned by pool, reason and result.",
	}, []string{"pool", "reason", "result"})
	statusWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_writes_total",
		Help: "Order and sub-order status writes partitioned by level and target status.",
	}, []string{"level", "status"})
	reg.MustRegister(checkouts, postCommitFailed, walletOps, statusWrites)
	return &SettlementMetrics{
		checkouts:        checkouts,
		postCommitFailed: postCommitFailed,
		walletOps:        walletOps,
		statusWrites:     statusWrites,
	}
}

// IncCheckout records a checkout outcome ("placed" or an error code).
func (m *SettlementMetrics) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncPostCommitFailure records a failed step that runs after the order commit.
func (m *SettlementMetrics) IncPostCommitFailure(step string) {
	if m == nil || m.postCommitFailed == nil {
		return
	}
	m.postCommitFailed.WithLabelValues(normalizeLabel(step)).Inc()
}

// IncWalletOperation records a ledger write.
func (m *SettlementMetrics) IncWalletOperation(pool, reason, result string) {
	if m == nil || m.walletOps == nil {
		return
	}
	m.walletOps.WithLabelValues(normalizeLabel(pool), normalizeLabel(reason), normalizeLabel(result)).Inc()
}

// IncStatusWrite records an applied status transition.
func (m *SettlementMetrics) IncStatusWrite(level, status string) {
	if m == nil || m.statusWrites == nil {
		return
	}
	m.statusWrites.WithLabelValues(normalizeLabel(level), normalizeLabel(status)).Inc()
}
