// Package errors carries the typed application errors used across the HTTP
// layer, services and workers. Each Code maps to an HTTP status, a public
// message and whether callers may retry.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Settlement failures surfaced to buyers and sellers.
const (
	CodeEmptyCart           Code = "EMPTY_CART"
	CodeStockViolation      Code = "STOCK_VIOLATION"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeExcessiveDiscount   Code = "EXCESSIVE_DISCOUNT"
	CodeInvalidTransition   Code = "INVALID_STATUS_TRANSITION"
	CodePaymentVerification Code = "PAYMENT_VERIFICATION_FAILED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type traits uint8

const (
	retryable traits = 1 << iota
	withDetails
)

func entry(status int, public string, t traits) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      t&retryable != 0,
		DetailsAllowed: t&withDetails != 0,
	}
}

var registry = map[Code]Metadata{
	CodeValidation:    entry(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:  entry(http.StatusUnauthorized, "authentication required", 0),
	CodeForbidden:     entry(http.StatusForbidden, "access denied", 0),
	CodeNotFound:      entry(http.StatusNotFound, "resource not found", 0),
	CodeConflict:      entry(http.StatusConflict, "conflict detected", 0),
	CodeStateConflict: entry(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:   entry(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:     entry(http.StatusTooManyRequests, "rate limit exceeded", 0),
	CodeInternal:      entry(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    entry(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),

	CodeEmptyCart:           entry(http.StatusUnprocessableEntity, "cart is empty", 0),
	CodeStockViolation:      entry(http.StatusConflict, "cart items are no longer available", withDetails),
	CodeInsufficientBalance: entry(http.StatusUnprocessableEntity, "insufficient balance", withDetails),
	CodeExcessiveDiscount:   entry(http.StatusUnprocessableEntity, "discounts exceed order value", withDetails),
	CodeInvalidTransition:   entry(http.StatusUnprocessableEntity, "status transition not allowed", withDetails),
	CodePaymentVerification: entry(http.StatusPaymentRequired, "payment could not be verified", retryable|withDetails),
}

// MetadataFor treats unknown codes as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := registry[code]; ok {
		return meta
	}
	return registry[CodeInternal]
}

func (c Code) Known() bool {
	_, ok := registry[c]
	return ok
}

// Error is a coded failure with an internal message, optional details for
// the response body and an optional cause.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code reports CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether err is worth retrying. Untyped errors count
// as internal and so are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}
