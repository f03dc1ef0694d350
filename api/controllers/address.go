package controllers

import (
	"net/http"

	"github.com/haatbazaar/marketplace-backend/api/responses"
	"github.com/haatbazaar/marketplace-backend/api/validators"
	"github.com/haatbazaar/marketplace-backend/internal/address"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
	"github.com/haatbazaar/marketplace-backend/pkg/types"
)

// ListAddresses returns the caller's saved shipping addresses.
func ListAddresses(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.List(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := make([]addressResponse, 0, len(list))
		for _, a := range list {
			resp = append(resp, newAddressResponse(a))
		}
		responses.WriteSuccess(w, map[string]any{"addresses": resp})
	}
}

// CreateAddress saves a shipping address for the caller.
func CreateAddress(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload types.Address
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		created, err := svc.Create(ctx, userID, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAddressResponse(*created))
	}
}
