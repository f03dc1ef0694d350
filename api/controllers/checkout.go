package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/api/responses"
	"github.com/haatbazaar/marketplace-backend/api/validators"
	checkoutsvc "github.com/haatbazaar/marketplace-backend/internal/checkout"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

type paymentProofRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

type createOrderRequest struct {
	AddressID       *uuid.UUID           `json:"address_id,omitempty"`
	ShippingDetails *types.Address       `json:"shipping_details,omitempty"`
	PaymentMethod   string               `json:"payment_method" validate:"required,oneof=cod online"`
	Payment         *paymentProofRequest `json:"payment,omitempty"`
	WalletCoins     int64                `json:"wallet_coins" validate:"min=0"`
	RedeemCoins     int64                `json:"redeem_coins" validate:"min=0"`
	RewardPoints    int64                `json:"reward_points" validate:"min=0"`
	CouponCode      string               `json:"coupon_code,omitempty" validate:"max=64"`
}

func (req createOrderRequest) toInput(buyerID uuid.UUID) (checkoutsvc.Input, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return checkoutsvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
	}
	input := checkoutsvc.Input{
		BuyerID:       buyerID,
		AddressID:     req.AddressID,
		Shipping:      req.ShippingDetails,
		PaymentMethod: method,
		Discounts: checkoutsvc.Discounts{
			WalletCoins:  req.WalletCoins,
			RedeemCoins:  req.RedeemCoins,
			RewardPoints: req.RewardPoints,
		},
		CouponCode: strings.TrimSpace(req.CouponCode),
	}
	if req.Payment != nil {
		input.Payment = &checkoutsvc.PaymentProof{
			GatewayOrderID: req.Payment.GatewayOrderID,
			PaymentID:      req.Payment.PaymentID,
			Signature:      req.Payment.Signature,
		}
	}
	return input, nil
}

// CreateOrder settles the caller's cart into an order with one sub-order per seller.
func CreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
