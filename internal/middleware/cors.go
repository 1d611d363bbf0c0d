package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Headers browsers may read from catalog responses: paging totals, request
// correlation and the admin rate limit budget.
var exposedHeaders = []string{
	"X-Total-Count",
	"X-Request-Id",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"Retry-After",
}

// CORSMiddleware lets storefront and admin frontends call the API. Any origin
// is accepted in development or when none is configured. Tokens travel in the
// Authorization header, so cookies are never allowed.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	if isDevelopment || len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// DefaultMiddlewareStack is installed ahead of every catalog route.
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.StripSlashes,
		middleware.Recoverer,
		middleware.Compress(5),
	}
}
