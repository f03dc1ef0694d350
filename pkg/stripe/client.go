package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes allowed in each
// Stripe mode.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client is a PaymentIntent client bound to one API key. It does not touch
// the SDK's package-level key, so test and live clients can coexist.
type Client struct {
	mode    string
	intents paymentintent.Client
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Env))
	if mode == "" {
		mode = "test"
	}
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("stripe environment %q: want test or live", cfg.Env)
	}

	key := strings.TrimSpace(cfg.Secret)
	if key == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	if !hasAnyPrefix(key, prefixes) {
		return nil, fmt.Errorf("stripe %s mode needs a %s key", mode, strings.Join(prefixes, " or "))
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
	})
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_mode": mode,
			"max_retries": cfg.MaxRetries,
		}), "stripe client ready")
	}
	return &Client{mode: mode, intents: paymentintent.Client{B: backend, Key: key}}, nil
}

// Environment is "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		return nil, fmt.Errorf("payment intent params are required")
	}
	params.Context = ctx
	return c.intents.New(params)
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return c.intents.Get(id, params)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
