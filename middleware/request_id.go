package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/llm-router/utils"
)

// PropagateRequestID copies the chi request ID into the application context
// so layers below HTTP (router, audit trail) can tag their records with it.
// Must be mounted after chi's RequestID middleware.
func PropagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := utils.WithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
