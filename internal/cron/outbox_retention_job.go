package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultOutboxBatch     = 1000
	// maxOutboxBatches caps one run; leftovers go on the next interval.
	maxOutboxBatches = 100
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	Retention  time.Duration
	BatchSize  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows. Unpublished and
// dead-lettered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = defaultOutboxBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	repo      outboxRetentionRepo
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, batches, err := j.drain(ctx, cutoff)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"batches":      batches,
		"rows_deleted": deleted,
	})
	if err != nil {
		return fmt.Errorf("outbox retention after %d rows: %w", deleted, err)
	}
	if batches == maxOutboxBatches {
		j.logg.Warn(logCtx, "outbox retention hit batch cap")
		return nil
	}
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}

// drain deletes until a short batch comes back or the cap is reached.
func (j *outboxRetentionJob) drain(ctx context.Context, cutoff time.Time) (deleted int64, batches int, err error) {
	for batches < maxOutboxBatches {
		if err := ctx.Err(); err != nil {
			return deleted, batches, err
		}
		rows, err := j.repo.DeletePublishedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return deleted, batches, err
		}
		batches++
		deleted += rows
		if rows < int64(j.batch) {
			break
		}
	}
	return deleted, batches, nil
}
