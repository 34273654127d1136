package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"projecthub/internal/platform/config"
)

// CORS builds the cross-origin handler from configuration. Development with no
// configured origins allows any origin without credentials.
func CORS(cfg config.CORSConfig, dev bool) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         cfg.MaxAge,
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
	}

	switch {
	case len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] != "*":
		opts.AllowCredentials = true
	case dev || len(cfg.AllowedOrigins) > 0:
		opts.AllowedOrigins = []string{"*"}
	}

	return cors.Handler(opts)
}
