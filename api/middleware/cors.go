package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/haatbazaar/marketplace-backend/api/responses"
)

const devOrigin = "http://localhost:3000"

// CORS applies the browser origin policy. Clients may read the request id
// and the replay marker from responses.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{devOrigin}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", responses.RequestIDHeader, IdempotencyHeader},
		ExposedHeaders:   []string{responses.RequestIDHeader, ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler
}
