package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Locker hands out per-job leases shared by every cron worker instance.
// Acquire returns a nil Lease when another instance holds the job.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (Lease, error)
}

// Lease is an owned job lock. Releasing a lease that expired or was taken
// over is a no-op.
type Lease interface {
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLocker stores each lease as a key holding a random owner token.
type RedisLocker struct {
	store  leaseStore
	keyFor func(job string) string
}

// NewRedisLocker builds a locker. keyFor maps a job name onto its Redis key.
func NewRedisLocker(store leaseStore, keyFor func(job string) string) (*RedisLocker, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case keyFor == nil:
		return nil, errors.New("lock key func is required")
	}
	return &RedisLocker{store: store, keyFor: keyFor}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, job string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive for %s", job)
	}
	lease := &tokenLease{store: l.store, key: l.keyFor(job), token: uuid.NewString()}
	won, err := l.store.SetNX(ctx, lease.key, lease.token, ttl)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", lease.key, err)
	}
	if !won {
		return nil, nil
	}
	return lease, nil
}

type tokenLease struct {
	store leaseStore
	key   string
	token string
}

func (l *tokenLease) Release(ctx context.Context) error {
	if _, err := l.store.DelIfValue(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
