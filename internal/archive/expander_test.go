package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"media-converter/internal/mediatypes"
)

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *logRecorder) withPrefix(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

func mustZip(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	data, err := ZipCodec{}.Compress(entries, CompressOptions{StoreOnly: true})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	return data
}

func newTestExpander() (*Expander, *logRecorder) {
	rec := &logRecorder{}
	e := NewExpander()
	e.Log = rec.logf
	return e, rec
}

func videoOnly(name, hint string) bool {
	return mediatypes.Matches(mediatypes.Video, name, hint)
}

func audioOnly(name, hint string) bool {
	return mediatypes.Matches(mediatypes.Audio, name, hint)
}

func paths(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Path)
	}
	return out
}

func TestExpandNestedZip(t *testing.T) {
	inner := mustZip(t,
		Entry{Name: "movie.mkv", Data: []byte("matroska")},
		Entry{Name: "notes.txt", Data: []byte("just some notes")},
	)
	outer := mustZip(t, Entry{Name: "inner.zip", Data: inner})

	e, rec := newTestExpander()
	items, err := e.Expand(context.Background(), Source{Name: "outer.zip", Data: outer}, "", videoOnly)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if diff := cmp.Diff([]string{"outer.zip/inner.zip/movie.mkv"}, paths(items)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if items[0].Extension != "mkv" || string(items[0].Data) != "matroska" {
		t.Errorf("Unexpected item %+v", items[0])
	}
	if skips := rec.withPrefix("Ignored"); len(skips) != 1 {
		t.Errorf("Expected exactly one skip line, got %v", skips)
	}
}

func TestExpandFlattensWithoutLossOrDuplicates(t *testing.T) {
	level3 := mustZip(t, Entry{Name: "deep.mp3", Data: []byte("3")})
	level2 := mustZip(t,
		Entry{Name: "mid.flac", Data: []byte("2")},
		Entry{Name: "level3.zip", Data: level3},
	)
	level1 := mustZip(t,
		Entry{Name: "b/top.wav", Data: []byte("1")},
		Entry{Name: "a/level2.zip", Data: level2},
		Entry{Name: "a/", Data: nil},
	)

	e, _ := newTestExpander()
	items, err := e.Expand(context.Background(), Source{Name: "bundle.zip", Data: level1}, "uploads", audioOnly)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	want := []string{
		"uploads/bundle.zip/a/level2.zip/level3.zip/deep.mp3",
		"uploads/bundle.zip/a/level2.zip/mid.flac",
		"uploads/bundle.zip/b/top.wav",
	}
	if diff := cmp.Diff(want, paths(items)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandPlainFiles(t *testing.T) {
	tests := []struct {
		name      string
		src       Source
		want      Predicate
		wantItems int
		wantLog   string
	}{
		{
			name:      "Matching audio",
			src:       Source{Name: "song.mp3", Data: []byte("x")},
			want:      audioOnly,
			wantItems: 1,
		},
		{
			name:      "MIME hint decides",
			src:       Source{Name: "recording", MIME: "audio/ogg", Data: []byte("x")},
			want:      audioOnly,
			wantItems: 1,
		},
		{
			name:    "Other type is skipped",
			src:     Source{Name: "clip.mp4", Data: []byte("x")},
			want:    audioOnly,
			wantLog: "Skipped media of the other type: clip.mp4",
		},
		{
			name:    "Non-media is skipped",
			src:     Source{Name: "readme.txt", Data: []byte("hello")},
			want:    audioOnly,
			wantLog: "Ignored non-media file: readme.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := newTestExpander()
			items, err := e.Expand(context.Background(), tt.src, "", tt.want)
			if err != nil {
				t.Fatalf("Expand failed: %v", err)
			}
			if len(items) != tt.wantItems {
				t.Errorf("Expected %d items, got %d", tt.wantItems, len(items))
			}
			if tt.wantLog != "" {
				if diff := cmp.Diff([]string{tt.wantLog}, rec.lines); diff != "" {
					t.Errorf("log mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestExpandCorruptArchiveOnlyDropsBranch(t *testing.T) {
	outer := mustZip(t,
		Entry{Name: "broken.zip", Data: []byte("garbage")},
		Entry{Name: "good.ogg", Data: []byte("ogg")},
	)

	e, rec := newTestExpander()
	items, err := e.Expand(context.Background(), Source{Name: "outer.zip", Data: outer}, "", audioOnly)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if diff := cmp.Diff([]string{"outer.zip/good.ogg"}, paths(items)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if errs := rec.withPrefix("Failed to extract outer.zip/broken.zip"); len(errs) != 1 {
		t.Errorf("Expected one extraction error, got %v", rec.lines)
	}
}

func TestExpandEmptyArchive(t *testing.T) {
	e, rec := newTestExpander()
	items, err := e.Expand(context.Background(), Source{Name: "empty.zip", Data: mustZip(t)}, "", audioOnly)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if notes := rec.withPrefix("Archive is empty: empty.zip"); len(notes) != 1 {
		t.Errorf("Expected empty archive note, got %v", rec.lines)
	}
}

func TestExpandMaxDepth(t *testing.T) {
	inner := mustZip(t, Entry{Name: "deep.mp3", Data: []byte("x")})
	outer := mustZip(t,
		Entry{Name: "inner.zip", Data: inner},
		Entry{Name: "top.mp3", Data: []byte("y")},
	)

	e, rec := newTestExpander()
	e.MaxDepth = 1
	items, err := e.Expand(context.Background(), Source{Name: "outer.zip", Data: outer}, "", audioOnly)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if diff := cmp.Diff([]string{"outer.zip/top.mp3"}, paths(items)); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if skips := rec.withPrefix("Archive nested deeper"); len(skips) != 1 {
		t.Errorf("Expected one depth skip, got %v", rec.lines)
	}
}

func TestExpandCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := newTestExpander()
	_, err := e.Expand(ctx, Source{Name: "song.mp3", Data: []byte("x")}, "", audioOnly)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
