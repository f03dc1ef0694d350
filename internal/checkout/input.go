package checkout

import (
	"strings"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

// PaymentProof is the client-reported result of an online payment.
type PaymentProof struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Input is the normalized checkout request. Exactly one of AddressID and
// Shipping is set.
type Input struct {
	BuyerID       uuid.UUID
	AddressID     *uuid.UUID
	Shipping      *types.Address
	PaymentMethod enums.PaymentMethod
	Payment       *PaymentProof
	Discounts     Discounts
	CouponCode    string
}

func (in Input) validate() error {
	if in.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if in.AddressID == nil && in.Shipping == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "address_id or shipping_details is required")
	}
	if in.AddressID != nil && in.Shipping != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "provide only one of address_id and shipping_details")
	}
	if !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": in.PaymentMethod})
	}
	if in.PaymentMethod == enums.PaymentMethodOnline {
		if in.Payment == nil ||
			strings.TrimSpace(in.Payment.GatewayOrderID) == "" ||
			strings.TrimSpace(in.Payment.PaymentID) == "" ||
			strings.TrimSpace(in.Payment.Signature) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "online payment requires gateway_order_id, payment_id and signature")
		}
	}
	return in.Discounts.validate()
}
