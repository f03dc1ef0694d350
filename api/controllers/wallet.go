package controllers

import (
	"net/http"
	"strings"

	"github.com/haatbazaar/marketplace-backend/api/responses"
	"github.com/haatbazaar/marketplace-backend/internal/wallet"
	"github.com/haatbazaar/marketplace-backend/pkg/enums"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

// GetWallet returns the caller's pool balances.
func GetWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// ListWalletTransactions pages through the caller's ledger, optionally for one pool.
func ListWalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := wallet.ListTransactionsInput{UserID: userID, Params: params}
		if raw := strings.TrimSpace(r.URL.Query().Get("pool")); raw != "" {
			pool, err := enums.ParseWalletPool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pool"))
				return
			}
			input.Pool = &pool
		}

		list, err := svc.ListTransactions(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := walletTransactionListResponse{
			Items:      make([]walletTransactionResponse, 0, len(list.Items)),
			NextCursor: list.NextCursor,
		}
		for _, tx := range list.Items {
			resp.Items = append(resp.Items, newWalletTransactionResponse(tx))
		}
		responses.WriteSuccess(w, resp)
	}
}
