package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		public    string
		retryable bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, "validation failed", false, true},
		{CodeUnauthorized, http.StatusUnauthorized, "authentication required", false, false},
		{CodeForbidden, http.StatusForbidden, "access denied", false, false},
		{CodeNotFound, http.StatusNotFound, "resource not found", false, false},
		{CodeConflict, http.StatusConflict, "conflict detected", false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, "state transition disallowed", false, true},
		{CodeIdempotency, http.StatusConflict, "idempotency key reused", false, true},
		{CodeRateLimit, http.StatusTooManyRequests, "rate limit exceeded", false, false},
		{CodeInternal, http.StatusInternalServerError, "internal server error", true, false},
		{CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", true, true},
		{CodeEmptyCart, http.StatusUnprocessableEntity, "cart is empty", false, false},
		{CodeStockViolation, http.StatusConflict, "cart items are no longer available", false, true},
		{CodeInsufficientBalance, http.StatusUnprocessableEntity, "insufficient balance", false, true},
		{CodeExcessiveDiscount, http.StatusUnprocessableEntity, "discounts exceed order value", false, true},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, "status transition not allowed", false, true},
		{CodePaymentVerification, http.StatusPaymentRequired, "payment could not be verified", true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.public, meta.PublicMessage)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.details, meta.DetailsAllowed)
			assert.True(t, tt.code.Known())
		})
	}
}

func TestUnknownCodeIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
	assert.False(t, Code("SOMETHING_UNKNOWN").Known())
}

func TestConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	base.WithDetails(map[string]any{"field": "foo"})
	assert.Equal(t, map[string]any{"field": "foo"}, base.Details())

	assert.Equal(t, "order 7 not found", Newf(CodeNotFound, "order %d not found", 7).Message())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: ctx: boom", wrapped.Error())
	assert.Nil(t, Wrap(CodeConflict, nil, "ctx").Unwrap())
}

func TestNilReceiver(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("x"))
}

func TestAsAndHasCode(t *testing.T) {
	inner := New(CodeInsufficientBalance, "not enough coins")
	outer := fmt.Errorf("checkout: %w", inner)

	got := As(outer)
	require.NotNil(t, got)
	assert.Same(t, inner, got)
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))

	assert.True(t, HasCode(outer, CodeInsufficientBalance))
	assert.False(t, HasCode(outer, CodeEmptyCart))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(stdErrors.New("connection reset")))
	assert.True(t, IsRetryable(fmt.Errorf("publish: %w", New(CodeDependency, "redis down"))))
	assert.False(t, IsRetryable(New(CodeValidation, "bad input")))
}
