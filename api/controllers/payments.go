package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/api/responses"
	"github.com/haatbazaar/marketplace-backend/api/validators"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/payments"
)

type createPaymentOrderRequest struct {
	AmountPaise int64  `json:"amount_paise" validate:"required,min=1"`
	Receipt     string `json:"receipt,omitempty" validate:"max=64"`
}

// CreatePaymentOrder opens a gateway order the client pays against before
// submitting an online checkout. The paid amount is re-checked at checkout.
func CreatePaymentOrder(gateway payments.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPaymentOrderRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt := strings.TrimSpace(payload.Receipt)
		if receipt == "" {
			receipt = uuid.NewString()
		}

		order, err := gateway.CreateOrder(r.Context(), payments.CreateOrderInput{
			AmountPaise: payload.AmountPaise,
			ReceiptID:   receipt,
			Notes:       map[string]string{"buyer_id": userID.String()},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
