package idempotency

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	value string
	ttl   time.Duration
}

type memStore struct {
	entries map[string]entry
	failSet error
	failGet error
}

func newMemStore() *memStore { return &memStore{entries: map[string]entry{}} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if m.failGet != nil {
		return "", m.failGet
	}
	e, ok := m.entries[key]
	if !ok {
		return "", goredis.Nil
	}
	return e.value, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.entries[key] = entry{value: fmt.Sprint(value), ttl: ttl}
	return nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = entry{value: fmt.Sprint(value), ttl: ttl}
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "hb:idempotency:" + scope + ":" + id
}

func ok(context.Context) error { return nil }

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemStore(), -time.Second)
	assert.Error(t, err)

	m, err := NewManager(newMemStore(), 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, m.lease, "lease never outlives the done mark")
}

func TestGuardMarksDoneWithRetentionTTL(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	ran, err := m.Guard(context.Background(), "settlement.reward", eventID, ok)
	require.NoError(t, err)
	assert.True(t, ran)

	key := "hb:idempotency:evt:processed:settlement.reward:" + eventID.String()
	require.Contains(t, store.entries, key)
	assert.Equal(t, entry{value: stateDone, ttl: 24 * time.Hour}, store.entries[key])

	done, err := m.Processed(context.Background(), "settlement.reward", eventID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestGuardSkipsCompletedStep(t *testing.T) {
	m, err := NewManager(newMemStore(), time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	calls := 0
	count := func(context.Context) error { calls++; return nil }
	_, err = m.Guard(context.Background(), "c", eventID, count)
	require.NoError(t, err)

	ran, err := m.Guard(context.Background(), "c", eventID, count)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, calls)
}

func TestGuardReleasesClaimOnFailure(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	ran, err := m.Guard(context.Background(), "c", eventID, func(context.Context) error {
		return errors.New("wallet down")
	})
	assert.EqualError(t, err, "wallet down")
	assert.False(t, ran)
	assert.Empty(t, store.entries)

	ran, err = m.Guard(context.Background(), "c", eventID, ok)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestGuardReportsInFlightClaim(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = m.Guard(context.Background(), "c", eventID, func(ctx context.Context) error {
		ran, inner := m.Guard(ctx, "c", eventID, ok)
		assert.False(t, ran)
		assert.ErrorIs(t, inner, ErrInFlight)
		return nil
	})
	require.NoError(t, err)
}

func TestGuardTreatsLegacyMarkAsDone(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()
	store.entries[m.store.IdempotencyKey("evt:processed:c", eventID.String())] = entry{value: "1"}

	ran, err := m.Guard(context.Background(), "c", eventID, func(context.Context) error {
		t.Fatal("step must not run again")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestGuardSurfacesStoreFailures(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	store.failSet = errors.New("redis timeout")
	ran, err := m.Guard(context.Background(), "c", uuid.New(), ok)
	assert.True(t, ran, "the step itself succeeded")
	assert.ErrorContains(t, err, "redis timeout")

	store.failSet = nil
	eventID := uuid.New()
	_, err = m.Guard(context.Background(), "c", eventID, ok)
	require.NoError(t, err)
	store.failGet = errors.New("redis down")
	_, err = m.Guard(context.Background(), "c", eventID, ok)
	assert.ErrorContains(t, err, "redis down")
}

func TestForgetAllowsRerun(t *testing.T) {
	m, err := NewManager(newMemStore(), time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = m.Guard(context.Background(), "c", eventID, ok)
	require.NoError(t, err)
	require.NoError(t, m.Forget(context.Background(), "c", eventID))

	ran, err := m.Guard(context.Background(), "c", eventID, ok)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestKeyRequiresConsumerAndEvent(t *testing.T) {
	m, err := NewManager(newMemStore(), time.Hour)
	require.NoError(t, err)

	_, err = m.Guard(context.Background(), "", uuid.New(), ok)
	assert.Error(t, err)
	_, err = m.Processed(context.Background(), "c", uuid.Nil)
	assert.Error(t, err)
}
