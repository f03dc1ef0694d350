package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

type scriptedOutboxRepo struct {
	cutoffs []time.Time
	limits  []int
	rows    []int64
	fail    error
	cancel  context.CancelFunc
}

func (r *scriptedOutboxRepo) DeletePublishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	r.cutoffs = append(r.cutoffs, cutoff)
	r.limits = append(r.limits, limit)
	if r.fail != nil {
		return 0, r.fail
	}
	if r.cancel != nil {
		r.cancel()
	}
	if len(r.rows) == 0 {
		return 0, nil
	}
	n := r.rows[0]
	r.rows = r.rows[1:]
	return n, nil
}

func retentionJob(t *testing.T, repo outboxRetentionRepo, retention time.Duration, batch int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: repo,
		Retention:  retention,
		BatchSize:  batch,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionUsesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	repo := &scriptedOutboxRepo{rows: []int64{12}}
	job := retentionJob(t, repo, 0, 0)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.cutoffs, 1)
	assert.Equal(t, now.UTC().Add(-defaultOutboxRetention), repo.cutoffs[0])
	assert.Equal(t, time.UTC, repo.cutoffs[0].Location())
	assert.Equal(t, []int{defaultOutboxBatch}, repo.limits)
}

func TestOutboxRetentionDrainsUntilShortBatch(t *testing.T) {
	repo := &scriptedOutboxRepo{rows: []int64{50, 50, 3, 50}}
	job := retentionJob(t, repo, 7*24*time.Hour, 50)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, repo.cutoffs, 3)
}

func TestOutboxRetentionStopsAtBatchCap(t *testing.T) {
	rows := make([]int64, maxOutboxBatches+5)
	for i := range rows {
		rows[i] = 10
	}
	repo := &scriptedOutboxRepo{rows: rows}
	job := retentionJob(t, repo, time.Hour, 10)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, repo.cutoffs, maxOutboxBatches)
}

func TestOutboxRetentionReportsRepoError(t *testing.T) {
	repo := &scriptedOutboxRepo{fail: errors.New("statement timeout")}
	job := retentionJob(t, repo, time.Hour, 10)

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "statement timeout")
}

func TestOutboxRetentionHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &scriptedOutboxRepo{rows: []int64{10, 10, 10}, cancel: cancel}
	job := retentionJob(t, repo, time.Hour, 10)

	err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, repo.cutoffs, 1)
}

func TestNewOutboxRetentionJobRequiresDeps(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Repository: &scriptedOutboxRepo{}})
	assert.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	assert.Error(t, err)
}
