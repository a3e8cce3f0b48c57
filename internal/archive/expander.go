package archive

import (
	"context"
	"sort"
	"strings"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
)

// Source is one uploaded file.
type Source struct {
	Name string
	MIME string
	Data []byte
}

// Item is one media file yielded by expansion.
type Item struct {
	// Path is the virtual path: the upload label joined with every archive
	// entry name on the way down.
	Path      string
	Extension string
	MIME      string
	Data      []byte
}

// Predicate reports whether a file belongs in the result.
type Predicate func(name, mimeHint string) bool

// Expander flattens uploads and nested archives into media items.
type Expander struct {
	Codec Codec
	// MaxDepth bounds archive nesting. The top-level archive is depth 1.
	// Zero means unbounded.
	MaxDepth int
	// Log receives user-facing skip and error lines. Defaults to logging.Info.
	Log func(format string, args ...any)
}

// NewExpander returns an Expander using the zip codec.
func NewExpander() *Expander {
	return &Expander{Codec: ZipCodec{}}
}

func (e *Expander) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log(format, args...)
		return
	}
	logging.Info(format, args...)
}

// Expand yields every media item in src accepted by want. prefix is
// prepended to src.Name to form virtual paths. A corrupt archive only
// drops its own branch. The returned error is non-nil only when ctx ends,
// in which case the items collected so far are returned with it.
func (e *Expander) Expand(ctx context.Context, src Source, prefix string, want Predicate) ([]Item, error) {
	var items []Item
	err := e.collect(ctx, src, mediatypes.JoinLabel(prefix, src.Name), want, 0, &items)
	return items, err
}

func (e *Expander) collect(ctx context.Context, src Source, label string, want Predicate, depth int, items *[]Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if mediatypes.IsArchive(src.Name) {
		return e.expandArchive(ctx, src, label, want, depth+1, items)
	}

	hint := src.MIME
	if _, known := mediatypes.Classify(src.Name, hint); !known {
		hint = mediatypes.DetectMIME(hint, src.Data)
	}

	switch {
	case want(src.Name, hint):
		*items = append(*items, Item{
			Path:      label,
			Extension: mediatypes.Extension(src.Name),
			MIME:      hint,
			Data:      src.Data,
		})
	case isMedia(src.Name, hint):
		metrics.SkippedFilesTotal.WithLabelValues("other_type").Inc()
		e.logf("Skipped media of the other type: %s", label)
	default:
		metrics.SkippedFilesTotal.WithLabelValues("not_media").Inc()
		if depth > 0 {
			e.logf("Ignored non-media file in archive: %s", label)
		} else {
			e.logf("Ignored non-media file: %s", label)
		}
	}
	return nil
}

func (e *Expander) expandArchive(ctx context.Context, src Source, label string, want Predicate, depth int, items *[]Item) error {
	if e.MaxDepth > 0 && depth > e.MaxDepth {
		metrics.SkippedFilesTotal.WithLabelValues("depth_limit").Inc()
		e.logf("Archive nested deeper than %d levels, skipped: %s", e.MaxDepth, label)
		return nil
	}

	e.logf("Extracting archive: %s", label)
	entries, err := e.Codec.Decompress(src.Data)
	if err != nil {
		metrics.SkippedFilesTotal.WithLabelValues("corrupt_archive").Inc()
		e.logf("Failed to extract %s: %v", label, err)
		return nil
	}
	if len(entries) == 0 {
		e.logf("Archive is empty: %s", label)
		return nil
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		if !strings.HasSuffix(name, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		child := Source{Name: name, Data: entries[name]}
		if err := e.collect(ctx, child, mediatypes.JoinLabel(label, name), want, depth, items); err != nil {
			return err
		}
	}
	return nil
}

func isMedia(name, hint string) bool {
	_, ok := mediatypes.Classify(name, hint)
	return ok
}
