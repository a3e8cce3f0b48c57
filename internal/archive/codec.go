package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// ErrCorrupt is returned when archive bytes cannot be decoded.
var ErrCorrupt = errors.New("corrupt archive")

// FixedModTime is stamped on every entry written without an explicit time,
// so identical inputs produce byte-identical archives.
var FixedModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file inside an archive.
type Entry struct {
	Name string
	Data []byte
}

// CompressOptions controls archive creation.
type CompressOptions struct {
	// StoreOnly writes entries without compression. Most payloads are
	// already-compressed media.
	StoreOnly bool
	// Modified overrides FixedModTime when non-zero.
	Modified time.Time
}

// Codec decodes and encodes archives held entirely in memory.
type Codec interface {
	// Decompress returns every entry keyed by its path. Directory entries
	// are present with a trailing slash and no data.
	Decompress(data []byte) (map[string][]byte, error)
	// Compress writes entries in the given order.
	Compress(entries []Entry, opts CompressOptions) ([]byte, error)
}

// ZipCodec implements Codec for zip archives.
type ZipCodec struct {
	// MaxEntryBytes bounds the decompressed size of a single entry.
	// Zero means no bound.
	MaxEntryBytes int64
}

// Decompress reads a zip archive.
func (c ZipCodec) Decompress(data []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	out := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			out[f.Name] = nil
			continue
		}
		content, err := c.readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.Name, err)
		}
		out[f.Name] = content
	}
	return out, nil
}

func (c ZipCodec) readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var src io.Reader = rc
	if c.MaxEntryBytes > 0 {
		src = io.LimitReader(rc, c.MaxEntryBytes+1)
	}
	content, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if c.MaxEntryBytes > 0 && int64(len(content)) > c.MaxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", c.MaxEntryBytes)
	}
	return content, nil
}

// Compress writes a zip archive.
func (c ZipCodec) Compress(entries []Entry, opts CompressOptions) ([]byte, error) {
	modified := opts.Modified
	if modified.IsZero() {
		modified = FixedModTime
	}
	method := zip.Deflate
	if opts.StoreOnly {
		method = zip.Store
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		header := &zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: modified,
		}
		fw, err := w.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
