package streaming

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// Download is an in-memory file offered to the client.
type Download struct {
	Name string
	// ContentType is sniffed from Data when empty.
	ContentType string
	Data        []byte
	// Kind labels the download in metrics: result, bundle, archive or
	// workspace.
	Kind string
}

// ServeDownload writes d as an attachment through a TimeoutWriter.
func ServeDownload(ctx context.Context, w http.ResponseWriter, d Download, config TimeoutWriterConfig) error {
	contentType := d.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(d.Data).String()
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(d.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	written, err := StreamWithTimeout(ctx, w, bytes.NewReader(d.Data), config)

	kind := d.Kind
	if kind == "" {
		kind = "result"
	}
	metrics.DownloadBytesTotal.WithLabelValues(kind).Add(float64(written))
	status := "success"
	if err != nil {
		status = "error"
		logging.Warn("Download of %s interrupted: %v", d.Name, err)
	}
	metrics.DownloadsTotal.WithLabelValues(kind, status).Inc()
	return err
}

// StreamWithTimeout copies r to w through a TimeoutWriter and returns the
// number of bytes the client accepted.
func StreamWithTimeout(ctx context.Context, w http.ResponseWriter, r io.Reader, config TimeoutWriterConfig) (int64, error) {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err := io.Copy(tw, r)

	written, elapsed := tw.Stats()
	logging.Debug("Stream completed: %d bytes in %v", written, elapsed.Round(time.Millisecond))
	return written, err
}
