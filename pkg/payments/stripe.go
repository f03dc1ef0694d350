package payments

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"

	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// IntentAPI is the subset of Stripe PaymentIntent calls the gateway needs.
type IntentAPI interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway maps gateway orders onto Stripe PaymentIntents. The intent id
// is the gateway order id, the latest charge id is the payment id and the
// intent client secret is the signature the client echoes back.
type StripeGateway struct {
	api      IntentAPI
	currency string
}

// NewStripeGateway returns a gateway charging in the provided currency.
func NewStripeGateway(api IntentAPI, currency string) (*StripeGateway, error) {
	if api == nil {
		return nil, fmt.Errorf("stripe intent api required")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "inr"
	}
	return &StripeGateway{api: api, currency: currency}, nil
}

func (g *StripeGateway) CreateOrder(ctx context.Context, input CreateOrderInput) (*GatewayOrder, error) {
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(input.ReceiptID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountPaise),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("receipt_id", input.ReceiptID)
	for k, v := range input.Notes {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey("receipt:" + input.ReceiptID)

	intent, err := g.api.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return &GatewayOrder{
		ID:           intent.ID,
		AmountPaise:  intent.Amount,
		Currency:     string(intent.Currency),
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, input VerifyInput) (*Verification, error) {
	if strings.TrimSpace(input.GatewayOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	intent, err := g.api.GetPaymentIntent(ctx, input.GatewayOrderID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "retrieve payment intent")
	}

	out := &Verification{AmountPaise: intent.Amount, Currency: string(intent.Currency)}
	if intent.ID != input.GatewayOrderID || intent.Status != stripe.PaymentIntentStatusSucceeded {
		return out, nil
	}
	if input.PaymentID != "" && input.PaymentID != intent.ID {
		if intent.LatestCharge == nil || intent.LatestCharge.ID != input.PaymentID {
			return out, nil
		}
	}
	if input.Signature == "" || subtle.ConstantTimeCompare([]byte(input.Signature), []byte(intent.ClientSecret)) != 1 {
		return out, nil
	}
	out.Success = true
	return out, nil
}
