package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

const defaultReadNotificationRetention = 30 * 24 * time.Hour

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository readNotificationPurger
	// Retention applies to read_at. Zero uses 30 days.
	Retention time.Duration
}

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob purges buyer and seller notifications that were
// read more than Retention ago.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Repository == nil:
		return nil, fmt.Errorf("notifications repository required")
	case params.Retention < 0:
		return nil, fmt.Errorf("notification retention must not be negative")
	}
	keep := params.Retention
	if keep == 0 {
		keep = defaultReadNotificationRetention
	}
	return &notificationCleanupJob{logg: params.Logger, purger: params.Repository, keep: keep, clock: time.Now}, nil
}

type notificationCleanupJob struct {
	logg   *logger.Logger
	purger readNotificationPurger
	keep   time.Duration
	clock  func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) cutoff() time.Time {
	return j.clock().UTC().Add(-j.keep)
}

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	readBefore := j.cutoff()
	purged, err := j.purger.DeleteReadBefore(ctx, readBefore)
	if err != nil {
		return fmt.Errorf("purge notifications read before %s: %w", readBefore.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"read_before": readBefore,
		"purged":      purged,
	}), "read notifications purged")
	return nil
}
