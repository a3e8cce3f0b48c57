package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig holds configuration for the CORS middleware
type CORSConfig struct {
	AllowedOrigins []string
	// MaxAge is how long, in seconds, browsers may cache a preflight answer
	MaxAge int
}

// DefaultCORSConfig allows any origin, which suits a front end served from
// a different host than the API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		MaxAge:         600,
	}
}

// CORS returns a middleware answering preflight requests and adding CORS
// headers for the API's methods. Content-Disposition is exposed so browser
// clients can read download names.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Accept-Encoding", RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After", RequestIDHeader},
		MaxAge:         config.MaxAge,
	})
	return c.Handler
}
