// Package payments defines the payment gateway seam used by checkout.
package payments

import "context"

// CreateOrderInput asks the gateway to open a payment for an amount in paise.
// ReceiptID doubles as the gateway idempotency key.
type CreateOrderInput struct {
	AmountPaise int64
	ReceiptID   string
	Notes       map[string]string
}

// GatewayOrder is the gateway-side payment handle returned to the client.
type GatewayOrder struct {
	ID           string `json:"id"`
	AmountPaise  int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// VerifyInput carries the client-reported payment proof.
type VerifyInput struct {
	PaymentID      string
	GatewayOrderID string
	Signature      string
}

// Verification is the gateway's verdict on a payment.
type Verification struct {
	Success     bool
	AmountPaise int64
	Currency    string
}

// Gateway creates and verifies payments.
type Gateway interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*GatewayOrder, error)
	VerifyPayment(ctx context.Context, input VerifyInput) (*Verification, error)
}
