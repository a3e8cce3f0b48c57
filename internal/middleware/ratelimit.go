package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"media-converter/internal/logging"
)

// RateLimitConfig holds configuration for the rate limiting middleware
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window. Zero or
	// less disables limiting.
	RequestLimit int
	// WindowSize is the sliding window length
	WindowSize time.Duration
	// KeyFunc extracts the limit key from the request. Defaults to the
	// client IP.
	KeyFunc httprate.KeyFunc
}

// RateLimit returns a middleware that answers 429 with a JSON body once a
// client exceeds the configured request rate.
func RateLimit(config RateLimitConfig) func(http.Handler) http.Handler {
	if config.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if config.WindowSize <= 0 {
		config.WindowSize = time.Minute
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		config.RequestLimit,
		config.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.Debug("Rate limit exceeded for %s %s from %s", r.Method, r.URL.Path, getClientIP(r))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(config.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests, please try again later"}`))
		}),
	)
}
