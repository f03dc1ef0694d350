package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/db/models"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox"
	"github.com/haatbazaar/marketplace-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := NewEventRegistry()

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.WalletDebitRequestedEvent{
		OrderID: orderID,
		BuyerID: uuid.New(),
		Debits:  []payloads.WalletDebit{{Pool: enums.WalletPoolBalance, Amount: 40}},
	})

	event := models.OutboxEvent{
		EventType:     enums.EventWalletDebitRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.EventType != enums.EventWalletDebitRequested {
		t.Fatalf("unexpected event type %s", resolved.Descriptor.EventType)
	}
	payload, ok := resolved.Payload.(*payloads.WalletDebitRequestedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || len(payload.Debits) != 1 || payload.Debits[0].Amount != 40 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if _, err := resolved.EventID(); err != nil {
		t.Fatalf("envelope event id should parse: %v", err)
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("reservation_released"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventOrderShipped,
		AggregateType: enums.AggregateWallet,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"order_id":"`+uuid.NewString()+`"}`)),
	}

	_, err := reg.Resolve(event)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestEventRegistryAcceptsSubOrderAggregates(t *testing.T) {
	reg := NewEventRegistry()

	subID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateSubOrder,
		AggregateID:   subID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.OrderCancelledEvent{
			OrderID:       uuid.New(),
			SubOrderID:    &subID,
			RefundedCoins: 18,
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := resolved.Payload.(*payloads.OrderCancelledEvent)
	if payload.SubOrderID == nil || *payload.SubOrderID != subID || payload.RefundedCoins != 18 {
		t.Fatalf("payload mismatch %+v", payload)
	}

	event.EventType = enums.EventWalletDebitRequested
	if _, err := reg.Resolve(event); err == nil {
		t.Fatal("wallet debits must be keyed on the order aggregate")
	}
}

func TestEventRegistryResolveMissingPayload(t *testing.T) {
	reg := NewEventRegistry()

	event := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte("null")),
	}

	if _, err := reg.Resolve(event); err == nil {
		t.Fatal("expected missing payload to fail")
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func mustEnvelope(t *testing.T, data []byte) json.RawMessage {
	t.Helper()
	return mustMarshal(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}
