package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Job is a maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule pairs a job with how often it should run across the fleet.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// Registry holds the worker's schedules in registration order.
type Registry struct {
	schedules []Schedule
	byName    map[string]int
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]int{}}
}

// Register adds job at the given cadence. Names must be unique because they
// key the distributed lease.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("job is required")
	}
	name := job.Name()
	if name == "" {
		return errors.New("job name is required")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	r.byName[name] = len(r.schedules)
	r.schedules = append(r.schedules, Schedule{Job: job, Every: every})
	return nil
}

// Schedules returns a copy of the registered schedules.
func (r *Registry) Schedules() []Schedule {
	out := make([]Schedule, len(r.schedules))
	copy(out, r.schedules)
	return out
}

func (r *Registry) Lookup(name string) (Schedule, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Schedule{}, false
	}
	return r.schedules[idx], true
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schedules))
	for _, s := range r.schedules {
		names = append(names, s.Job.Name())
	}
	return names
}
