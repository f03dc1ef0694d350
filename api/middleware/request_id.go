package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/api/responses"
	"github.com/haatbazaar/marketplace-backend/pkg/logger"
)

// Inbound ids from the edge proxy are reused only when they look like a
// token; anything else is replaced so log fields stay bounded.
var inboundRequestID = regexp.MustCompile(`^[A-Za-z0-9._\-]{8,64}$`)

// RequestID assigns the correlation id, echoes it on the response and adds
// it to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(responses.RequestIDHeader)
			if !inboundRequestID.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
