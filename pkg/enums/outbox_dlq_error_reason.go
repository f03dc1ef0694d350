package enums

import "slices"

// OutboxDLQErrorReason records why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: every handler retry failed.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: a handler rejected the event outright,
	// e.g. a wallet debit that can never succeed.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnresolvable: the row could not be decoded or has no
	// registered descriptor.
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
)

var validDLQReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnresolvable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains(validDLQReasons, r)
}

// Requeueable reports whether replaying the row can help. Unresolvable rows
// need a code or data fix first.
func (r OutboxDLQErrorReason) Requeueable() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}

func (r OutboxDLQErrorReason) String() string {
	return string(r)
}

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parse(validDLQReasons, value, "dlq error reason")
}
