// Package middleware provides HTTP middleware for the media converter API.
//
// It includes:
//   - Request logging in W3C Extended Log Format, emitted through zerolog with a request id
//   - Gzip response compression for JSON and log text (attachments are never compressed)
//   - Prometheus request metrics labelled by route template
//   - Per-client rate limiting for uploads and workspace commands
//   - CORS handling for browser front ends on another origin
package middleware
