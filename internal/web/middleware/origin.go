package middleware

import (
	"net/http"

	"github.com/JonMunkholm/facturador/internal/core"
)

// RequestOrigin stores the client IP and User-Agent in the request context
// so submission attempts can be attributed. Must run after TrustedRealIP.
func RequestOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithOrigin(r.Context(), core.Origin{
			ClientIP:  clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
