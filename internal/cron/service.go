package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/metrics"
)

const defaultTick = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	Tick     time.Duration
	Now      func() time.Time
}

// Service runs each registered job at most once per interval across all
// worker instances. A successful run keeps its lease until the interval
// ends; a failed run releases it so any instance may retry on its next tick.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
	nextRun  map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.Registry == nil || len(params.Registry.Schedules()) == 0 {
		return nil, fmt.Errorf("at least one job is required")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		tick:     tick,
		now:      now,
		nextRun:  map[string]time.Time{},
	}, nil
}

// Run checks for due jobs immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// RunOnce runs a single job now, still honouring the lease.
func (s *Service) RunOnce(ctx context.Context, name string) error {
	sched, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown job %q (known: %v)", name, s.registry.Names())
	}
	ran, err := s.runScheduled(ctx, sched)
	if err != nil {
		return err
	}
	if !ran {
		return fmt.Errorf("job %s already ran in this window or is running elsewhere", name)
	}
	return nil
}

func (s *Service) runDue(ctx context.Context) {
	now := s.now()
	for _, sched := range s.registry.Schedules() {
		name := sched.Job.Name()
		if next, ok := s.nextRun[name]; ok && now.Before(next) {
			continue
		}
		ran, err := s.runScheduled(ctx, sched)
		switch {
		case err != nil:
			// retry on the next tick
			delete(s.nextRun, name)
		case ran:
			s.nextRun[name] = now.Add(sched.Every)
		default:
			// another instance owns this window; look again after a tick
			s.nextRun[name] = now.Add(s.tick)
		}
	}
}

func (s *Service) runScheduled(ctx context.Context, sched Schedule) (bool, error) {
	name := sched.Job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	lease, err := s.locker.Acquire(jobCtx, name, sched.Every)
	if err != nil {
		s.logg.Error(jobCtx, "cron lease acquire failed", err)
		return false, err
	}
	if lease == nil {
		s.metrics.IncSkipped(name)
		s.logg.Debug(jobCtx, "job lease held elsewhere")
		return false, nil
	}

	s.logg.Info(jobCtx, "job start")
	start := s.now()
	runErr := sched.Job.Run(jobCtx)
	duration := s.now().Sub(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())

	if runErr != nil {
		s.metrics.ObserveRun(name, metrics.CronResultFailure, duration)
		s.logg.Error(jobCtx, "job failed", runErr)
		if relErr := lease.Release(ctx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lease", relErr)
		}
		return false, runErr
	}

	s.metrics.ObserveRun(name, metrics.CronResultSuccess, duration)
	s.metrics.MarkSuccess(name, s.now())
	s.logg.Info(jobCtx, "job completed")
	return true, nil
}
