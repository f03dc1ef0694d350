// Package idempotency lets outbox consumers run each side effect at most
// once per event id, across redeliveries and competing workers.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	stateRunning = "running"
	stateDone    = "done"

	// defaultLease bounds how long a crashed worker can hold a step. It
	// must exceed the outbox handler timeout.
	defaultLease = 2 * time.Minute
)

// ErrInFlight means another worker holds the step. The caller should let
// the event be redelivered.
var ErrInFlight = errors.New("step is running on another worker")

// Store is the subset of the Redis client the manager needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager records step completion under
// <prefix>:idempotency:evt:processed:<consumer>:<event_id>. A step is first
// claimed as running for the lease, then marked done for the retention ttl.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done marks for ttl; zero keeps them without expiry.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	lease := defaultLease
	if ttl > 0 && ttl < lease {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Guard runs fn unless the step already completed for eventID. ran is true
// only when fn ran and succeeded. A failed fn drops the claim so the next
// delivery retries it.
func (m *Manager) Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (ran bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := m.store.SetNX(ctx, key, stateRunning, m.lease)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", consumer, err)
	}
	if !claimed {
		done, err := m.isDone(ctx, key)
		if err != nil {
			return false, err
		}
		if done {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", consumer, ErrInFlight)
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(context.WithoutCancel(ctx), key); delErr != nil {
			return false, fmt.Errorf("%w (release claim: %v)", err, delErr)
		}
		return false, err
	}
	if err := m.store.Set(context.WithoutCancel(ctx), key, stateDone, m.ttl); err != nil {
		return true, fmt.Errorf("record %s done: %w", consumer, err)
	}
	return true, nil
}

// Processed reports whether the step completed for eventID.
func (m *Manager) Processed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.isDone(ctx, key)
}

// Forget clears the mark so the step runs again on the next delivery.
func (m *Manager) Forget(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// isDone treats any value other than the running claim as done, which
// covers marks written before claims existed.
func (m *Manager) isDone(ctx context.Context, key string) (bool, error) {
	state, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return state != "" && state != stateRunning, nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
