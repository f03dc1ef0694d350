package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/api/middleware"
	"github.com/haatbazaar/marketplace-backend/api/validators"
	"github.com/haatbazaar/marketplace-backend/internal/orders"
	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
	"github.com/haatbazaar/marketplace-backend/pkg/pagination"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return p.UserID, nil
}

func actorFromRequest(r *http.Request) (orders.Actor, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	if !p.Role.IsValid() {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "actor role missing")
	}
	return orders.Actor{UserID: p.UserID, Role: p.Role}, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

const maxCursorLen = 256

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.QueryInt(r, "limit", validators.IntRange{
		Default: pagination.DefaultLimit,
		Min:     1,
		Max:     pagination.MaxLimit,
	})
	if err != nil {
		return pagination.Params{}, err
	}
	cursor, err := validators.QueryToken(r, "cursor", maxCursorLen)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}
