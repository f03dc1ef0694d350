package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/payloads"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderPlacedRow(t, "event-one", 0),
			orderPlacedRow(t, "event-two", 0),
		},
	}
	handler := &fakeHandler{
		types:   []enums.OutboxEventType{enums.EventOrderPlaced},
		results: []error{errors.New("transient"), nil},
	}
	service := newTestService(t, repo, orderPlacedRegistry(), &fakeDLQRepo{}, nil, handler)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestServiceDispatchesToEveryRegisteredHandler(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderPlacedRow(t, "fanout", 0)}}
	first := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderPlaced}}
	second := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderPlaced, enums.EventOrderShipped}}
	other := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderCancelled}}
	service := newTestService(t, repo, orderPlacedRegistry(), &fakeDLQRepo{}, nil, first, second, other)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both order_placed handlers to run once, got %d and %d", first.calls, second.calls)
	}
	if other.calls != 0 {
		t.Fatalf("handler for another event type ran")
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected published row recorded once, got %d", len(repo.published))
	}
}

func TestServiceRetriesWhenAnyHandlerFails(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderPlacedRow(t, "partial", 0)}}
	ok := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderPlaced}}
	failing := &fakeHandler{
		types:   []enums.OutboxEventType{enums.EventOrderPlaced},
		results: []error{errors.New("smtp down")},
	}
	service := newTestService(t, repo, orderPlacedRegistry(), &fakeDLQRepo{}, nil, ok, failing)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.published) != 0 {
		t.Fatalf("row published despite handler failure")
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected row marked failed, got %d", len(repo.failed))
	}
}

func TestServiceProcessBatchWritesDLQOnResolveFailure(t *testing.T) {
	event := orderPlacedRow(t, "nonretryable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	eventRegistry := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlqRepo := &fakeDLQRepo{}
	handler := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderPlaced}}
	service := newTestService(t, repo, eventRegistry, dlqRepo, nil, handler)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.Payload == nil || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonUnresolvable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if handler.calls != 0 {
		t.Fatalf("handler ran for unresolvable row")
	}
}

func TestServiceWritesDLQWhenHandlerRejectsEvent(t *testing.T) {
	event := orderPlacedRow(t, "rejected", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handler := &fakeHandler{
		types:   []enums.OutboxEventType{enums.EventOrderPlaced},
		results: []error{registry.NewNonRetryableError(errors.New("insufficient balance"))},
	}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, orderPlacedRegistry(), dlqRepo, nil, handler)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	if dlqRepo.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", dlqRepo.entries[0].ErrorReason)
	}
	if len(repo.terminal) != 1 || len(repo.published) != 0 {
		t.Fatalf("expected row marked terminal only")
	}
}

func TestServiceClassifiesTypedHandlerErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "payload missing buyer"), true},
		{"not found wrapped", fmt.Errorf("load order: %w", pkgerrors.New(pkgerrors.CodeNotFound, "order")), true},
		{"dependency", pkgerrors.New(pkgerrors.CodeDependency, "smtp down"), false},
		{"untyped", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{events: []models.OutboxEvent{orderPlacedRow(t, tc.name, 0)}}
			dlqRepo := &fakeDLQRepo{}
			handler := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderPlaced}, results: []error{tc.err}}
			service := newTestService(t, repo, orderPlacedRegistry(), dlqRepo, nil, handler)

			if _, err := service.processBatch(context.Background()); err != nil {
				t.Fatalf("process batch returned error: %v", err)
			}
			if tc.terminal && (len(dlqRepo.entries) != 1 || len(repo.failed) != 0) {
				t.Fatalf("expected dead letter, got dlq=%d failed=%d", len(dlqRepo.entries), len(repo.failed))
			}
			if !tc.terminal && (len(dlqRepo.entries) != 0 || len(repo.failed) != 1) {
				t.Fatalf("expected retry, got dlq=%d failed=%d", len(dlqRepo.entries), len(repo.failed))
			}
		})
	}
}

func TestServiceDeadLettersUnhandledEventTypes(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderPlacedRow(t, "orphan", 0)}}
	dlqRepo := &fakeDLQRepo{}
	handler := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderCancelled}}
	service := newTestService(t, repo, orderPlacedRegistry(), dlqRepo, nil, handler)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := orderPlacedRow(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handler := &fakeHandler{
		types:   []enums.OutboxEventType{enums.EventOrderPlaced},
		results: []error{errors.New("transient")},
	}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, orderPlacedRegistry(), dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	}, handler)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestServiceProcessBatchReportsIdleBatch(t *testing.T) {
	handler := &fakeHandler{types: []enums.OutboxEventType{enums.EventOrderPlaced}}
	service := newTestService(t, &fakeRepo{}, orderPlacedRegistry(), &fakeDLQRepo{}, nil, handler)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected empty batch to report idle")
	}
}

func TestNewServiceRequiresHandlers(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:        &config.Config{},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-worker-test", Output: io.Discard}),
		DB:            &fakeDB{},
		Repository:    &fakeRepo{},
		Registry:      orderPlacedRegistry(),
		DLQRepository: &fakeDLQRepo{},
	})
	if err == nil {
		t.Fatalf("expected error without handlers")
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(0, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("unexpected first backoff: %s", got)
	}
	if got := nextBackoff(800*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
	if got := withJitter(time.Second); got < time.Second || got >= time.Second+jitterWindow {
		t.Fatalf("jitter out of window: %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, resolver registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig, handlers ...Handler) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-worker-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            &fakeDB{},
		Repository:    repo,
		Registry:      resolver,
		DLQRepository: dlq,
		Handlers:      handlers,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderPlacedRow(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(tb, eventID),
		AttemptCount:  attempts,
	}
}

func orderPlacedRegistry() *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:      enums.EventOrderPlaced,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateOrder},
		},
		Payload: &payloads.OrderPlacedEvent{},
	}}
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeHandler struct {
	types   []enums.OutboxEventType
	results []error
	calls   int
}

func (f *fakeHandler) EventTypes() []enums.OutboxEventType {
	return f.types
}

func (f *fakeHandler) Handle(context.Context, *registry.ResolvedEvent) error {
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
