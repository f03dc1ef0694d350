package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	at := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

	m.ObserveRun("wallet-reconcile", CronResultSuccess, 250*time.Millisecond)
	m.ObserveRun("wallet-reconcile", CronResultFailure, time.Second)
	m.IncSkipped("wallet-reconcile")
	m.IncSkipped("wallet-reconcile")
	m.MarkSuccess("wallet-reconcile", at)

	const want = `
# HELP cron_job_runs_total Cron job runs partitioned by result.
# TYPE cron_job_runs_total counter
cron_job_runs_total{job="wallet-reconcile",result="failure"} 1
cron_job_runs_total{job="wallet-reconcile",result="skipped"} 2
cron_job_runs_total{job="wallet-reconcile",result="success"} 1
# HELP cron_job_last_success_timestamp_seconds Unix time of the last successful run per job.
# TYPE cron_job_last_success_timestamp_seconds gauge
cron_job_last_success_timestamp_seconds{job="wallet-reconcile"} 1.7723304e+09
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want),
		"cron_job_runs_total", "cron_job_last_success_timestamp_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestCronJobMetricsLabelsEmptyJobUnknown(t *testing.T) {
	m := NewCronJobMetrics(prometheus.NewRegistry())
	m.IncSkipped("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", CronResultSkipped)))
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	assert.NotPanics(t, func() {
		m.ObserveRun("job", CronResultSuccess, time.Second)
		m.IncSkipped("job")
		m.MarkSuccess("job", time.Now())

		var none *CronJobMetrics
		none.IncSkipped("job")
	})
}
