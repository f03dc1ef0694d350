package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
)

// fakeLocker emulates leases that expire at a fixed time on a shared clock.
type fakeLocker struct {
	clock    *fakeClock
	held     map[string]time.Time
	released []string
	err      error
}

func newFakeLocker(clock *fakeClock) *fakeLocker {
	return &fakeLocker{clock: clock, held: map[string]time.Time{}}
}

func (f *fakeLocker) Acquire(_ context.Context, job string, ttl time.Duration) (Lease, error) {
	if f.err != nil {
		return nil, f.err
	}
	if until, ok := f.held[job]; ok && f.clock.now.Before(until) {
		return nil, nil
	}
	f.held[job] = f.clock.now.Add(ttl)
	return &fakeLease{locker: f, job: job}, nil
}

type fakeLease struct {
	locker *fakeLocker
	job    string
}

func (l *fakeLease) Release(context.Context) error {
	delete(l.locker.held, l.job)
	l.locker.released = append(l.locker.released, l.job)
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, locker Locker, clock *fakeClock, reg prometheus.Registerer, schedules ...Schedule) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, s := range schedules {
		require.NoError(t, registry.Register(s.Job, s.Every))
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Tick:     time.Minute,
		Now:      clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func TestRunDueHonoursPerJobCadence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	hourly := &testJob{name: "outbox-retention"}
	daily := &testJob{name: "wallet-reconcile"}
	svc := newTestService(t, newFakeLocker(clock), clock, nil,
		Schedule{Job: hourly, Every: time.Hour},
		Schedule{Job: daily, Every: 24 * time.Hour},
	)
	ctx := context.Background()

	svc.runDue(ctx)
	assert.Equal(t, 1, hourly.runs)
	assert.Equal(t, 1, daily.runs)

	clock.now = clock.now.Add(30 * time.Minute)
	svc.runDue(ctx)
	assert.Equal(t, 1, hourly.runs)

	clock.now = clock.now.Add(31 * time.Minute)
	svc.runDue(ctx)
	assert.Equal(t, 2, hourly.runs)
	assert.Equal(t, 1, daily.runs)
}

func TestRunDueFailureReleasesLeaseAndRetries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	locker := newFakeLocker(clock)
	failing := &testJob{name: "wallet-reconcile", err: errors.New("boom")}
	ok := &testJob{name: "outbox-retention"}
	svc := newTestService(t, locker, clock, nil,
		Schedule{Job: failing, Every: 24 * time.Hour},
		Schedule{Job: ok, Every: time.Hour},
	)
	ctx := context.Background()

	svc.runDue(ctx)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, ok.runs, "a failing job must not block the others")
	assert.Equal(t, []string{"wallet-reconcile"}, locker.released)

	clock.now = clock.now.Add(time.Minute)
	svc.runDue(ctx)
	assert.Equal(t, 2, failing.runs)
	assert.Equal(t, 1, ok.runs)
}

func TestRunDueSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	locker := newFakeLocker(clock)
	locker.held["wallet-reconcile"] = clock.now.Add(2 * time.Hour)
	job := &testJob{name: "wallet-reconcile"}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, locker, clock, reg, Schedule{Job: job, Every: 24 * time.Hour})

	svc.runDue(context.Background())
	assert.Zero(t, job.runs)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var skipped float64
	for _, mf := range mfs {
		if mf.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == metrics.CronResultSkipped {
					skipped = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(1), skipped)

	clock.now = clock.now.Add(3 * time.Hour)
	svc.runDue(context.Background())
	assert.Equal(t, 1, job.runs)
}

func TestRunOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	locker := newFakeLocker(clock)
	job := &testJob{name: "notification-cleanup"}
	svc := newTestService(t, locker, clock, nil, Schedule{Job: job, Every: 24 * time.Hour})
	ctx := context.Background()

	require.NoError(t, svc.RunOnce(ctx, "notification-cleanup"))
	assert.Equal(t, 1, job.runs)

	assert.ErrorContains(t, svc.RunOnce(ctx, "notification-cleanup"), "already ran")
	assert.ErrorContains(t, svc.RunOnce(ctx, "nope"), "unknown job")

	locker.err = errors.New("redis down")
	clock.now = clock.now.Add(25 * time.Hour)
	assert.ErrorContains(t, svc.RunOnce(ctx, "notification-cleanup"), "redis down")
	assert.Equal(t, 1, job.runs)
}

func TestNewServiceValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	_, err := NewService(ServiceParams{Logger: logg, Registry: NewRegistry(), Locker: newFakeLocker(&fakeClock{})})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Registry: NewRegistry()})
	assert.Error(t, err)
}
