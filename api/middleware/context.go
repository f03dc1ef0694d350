package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// Principal is the authenticated caller attached by Auth.
type Principal struct {
	UserID  uuid.UUID
	Role    enums.ActorRole
	TokenID string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext reports false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}

// callerKey identifies the caller for throttling and replay scopes. Empty
// when the request is anonymous.
func callerKey(ctx context.Context) string {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.UserID.String()
}
