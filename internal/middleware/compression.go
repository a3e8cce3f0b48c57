package middleware

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes is a list of content types that should be compressed
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses the API's JSON and log text. Media
// and archives are already compressed and are left alone.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"application/x-ndjson",
			"text/plain",
			"text/html",
			"text/css",
			"text/javascript",
			"application/javascript",
			"image/svg+xml",
		},
	}
}

// newWriterPool returns a pool of gzip writers at level, falling back to
// the default level when level is out of range.
func newWriterPool(level int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, level)
			if err != nil {
				w, _ = gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
			}
			return w
		},
	}
}

type encodingState int

const (
	undecided encodingState = iota
	passthrough
	compressing
)

// gzipResponseWriter holds back the first MinSize bytes of a response, then
// commits to gzip or to the identity encoding based on size, content type
// and disposition.
type gzipResponseWriter struct {
	http.ResponseWriter
	config     CompressionConfig
	types      map[string]bool
	pool       *sync.Pool
	gz         *gzip.Writer
	buffer     []byte
	statusCode int
	state      encodingState
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig, pool *sync.Pool) *gzipResponseWriter {
	types := make(map[string]bool, len(config.CompressibleTypes))
	for _, t := range config.CompressibleTypes {
		types[t] = true
	}
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		types:          types,
		pool:           pool,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader is deferred until the encoding is decided.
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.state == undecided {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	switch g.state {
	case compressing:
		return g.gz.Write(data)
	case passthrough:
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// compressible reports whether the response headers allow gzip.
func (g *gzipResponseWriter) compressible() bool {
	h := g.Header()
	if h.Get("Content-Encoding") != "" || strings.HasPrefix(h.Get("Content-Disposition"), "attachment") {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	return g.types[mediaType]
}

// decide commits to an encoding and writes out the held-back bytes.
func (g *gzipResponseWriter) decide() error {
	if g.state != undecided {
		return nil
	}

	buffered := g.buffer
	g.buffer = nil

	if len(buffered) < g.config.MinSize || !g.compressible() {
		g.state = passthrough
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.ResponseWriter.Write(buffered)
		return err
	}

	g.state = compressing
	g.Header().Del("Content-Length")
	g.Header().Set("Content-Encoding", "gzip")
	g.Header().Add("Vary", "Accept-Encoding")

	g.gz = g.pool.Get().(*gzip.Writer)
	g.gz.Reset(g.ResponseWriter)
	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gz.Write(buffered)
	return err
}

// Close flushes what is still held back and returns the gzip writer to the
// pool.
func (g *gzipResponseWriter) Close() error {
	if err := g.decide(); err != nil {
		return err
	}
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	g.pool.Put(g.gz)
	g.gz = nil
	return err
}

// Flush forces the encoding decision so streamed output is not held back.
func (g *gzipResponseWriter) Flush() {
	_ = g.decide()
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// acceptsGzip reports whether an Accept-Encoding header lists gzip with a
// non-zero quality.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		name, value, found := strings.Cut(strings.TrimSpace(params), "=")
		if !found || strings.TrimSpace(name) != "q" {
			return true
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err != nil || q > 0
	}
	return false
}

// Compression returns a middleware that gzips responses for clients that
// accept it. Event streams and upgrades are passed through untouched.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pool := newWriterPool(config.Level)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) ||
				r.Header.Get("Upgrade") != "" ||
				strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config, pool)
			defer gzw.Close()
			next.ServeHTTP(gzw, r)
		})
	}
}
