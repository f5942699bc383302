package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Pret-a-LLOD/Fintan/logger"
)

// RequestIDHeader carries the request identifier.
const RequestIDHeader = "X-Request-Id"

// RequestID propagates or generates X-Request-Id and stores it in the
// request context for logging.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
		})
	}
}
