package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-converter/internal/logging"
)

// RequestIDHeader carries the request id. An incoming value is kept,
// otherwise one is generated; either way it is echoed on the response.
const RequestIDHeader = "X-Request-ID"

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged
	SkipPaths       []string
	SkipExtensions  []string
	LogStaticFiles  bool
	LogHealthChecks bool
}

// DefaultLoggingConfig returns a sensible default configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		SkipExtensions:  []string{".css", ".js", ".ico", ".png", ".svg", ".woff", ".woff2", ".ttf", ".map"},
		LogStaticFiles:  false,
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

func (c LoggingConfig) skip(path string) bool {
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if !c.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	if !c.LogStaticFiles {
		lower := strings.ToLower(path)
		for _, ext := range c.SkipExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
	}
	return false
}

// Logger returns HTTP access logging middleware. Each request becomes one
// structured entry on the "http" component whose message is the request
// in W3C Extended Log Format:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(Content-Encoding) cs(User-Agent) cs(Referer)
//
// Server errors are logged at error level and client errors at warn.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			rec := newAccessRecord(r, wrapped, time.Since(start))
			log := logging.WithComponent("http")
			rec.event(&log).
				Str("request_id", sanitizeLogField(id)).
				Msg(rec.w3c())
		})
	}
}

// accessRecord is one request with every client-controlled field already
// sanitized. Missing values are "-".
type accessRecord struct {
	at        time.Time
	client    string
	method    string
	path      string
	query     string
	status    int
	bytes     int64
	took      time.Duration
	encoding  string
	userAgent string
	referer   string
}

func newAccessRecord(r *http.Request, rw *responseWriter, took time.Duration) accessRecord {
	return accessRecord{
		at:        time.Now().UTC(),
		client:    sanitizeLogField(getClientIP(r)),
		method:    sanitizeLogField(r.Method),
		path:      sanitizeLogField(r.URL.Path),
		query:     orDash(sanitizeLogField(r.URL.RawQuery)),
		status:    rw.statusCode,
		bytes:     rw.bytesWritten,
		took:      took,
		encoding:  orDash(rw.Header().Get("Content-Encoding")),
		userAgent: orDash(quoteW3CField(sanitizeLogField(r.Header.Get("User-Agent")))),
		referer:   orDash(sanitizeLogField(r.Header.Get("Referer"))),
	}
}

func (a accessRecord) event(log *zerolog.Logger) *zerolog.Event {
	var ev *zerolog.Event
	switch {
	case a.status >= http.StatusInternalServerError:
		ev = log.Error()
	case a.status >= http.StatusBadRequest:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	return ev.
		Int("status", a.status).
		Int64("bytes", a.bytes).
		Dur("took", a.took)
}

// w3c renders the record as one W3C Extended Log Format line; time-taken
// is in milliseconds.
func (a accessRecord) w3c() string {
	fields := []string{
		a.at.Format("2006-01-02"),
		a.at.Format("15:04:05"),
		a.client,
		a.method,
		a.path,
		a.query,
		strconv.Itoa(a.status),
		strconv.FormatInt(a.bytes, 10),
		strconv.FormatInt(a.took.Milliseconds(), 10),
		a.encoding,
		a.userAgent,
		a.referer,
	}
	return strings.Join(fields, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sanitizeLogField drops control characters that could forge log lines or
// inject terminal escapes. Line breaks become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		}
		return r
	}, s)
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// quoteW3CField quotes values containing spaces or quotes, doubling any
// embedded quotes.
func quoteW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
