package bundle

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"media-converter/internal/archive"
	"media-converter/internal/queue"
)

func makeResults(n int) []queue.Result {
	out := make([]queue.Result, 0, n)
	for i := 1; i <= n; i++ {
		data := []byte(fmt.Sprintf("output-%d", i))
		out = append(out, queue.Result{Name: fmt.Sprintf("track%d.mp3", i), Size: int64(len(data)), Data: data})
	}
	return out
}

func fixedPackager() *Packager {
	p := NewPackager(DefaultThreshold)
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return p
}

func TestPackageKinds(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		wantKind  Kind
		artifacts int
	}{
		{"no results", 0, Empty, 0},
		{"one result", 1, Individual, 1},
		{"at threshold", 3, Individual, 3},
		{"above threshold", 4, Bundle, 1},
		{"five results", 5, Bundle, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fixedPackager().Package(makeResults(tt.count))
			if err != nil {
				t.Fatalf("Package failed: %v", err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, got.Kind)
			}
			if len(got.Artifacts) != tt.artifacts {
				t.Errorf("Expected %d artifacts, got %d", tt.artifacts, len(got.Artifacts))
			}
			if got.Count != tt.count {
				t.Errorf("Expected count %d, got %d", tt.count, got.Count)
			}
		})
	}
}

func TestPackageEmptyMessage(t *testing.T) {
	got, err := fixedPackager().Package(nil)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if got.Message != EmptyMessage {
		t.Errorf("Expected empty message, got %q", got.Message)
	}
}

func TestPackageIndividualSizes(t *testing.T) {
	got, err := fixedPackager().Package(makeResults(2))
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	want := []string{"track1.mp3", "track2.mp3"}
	var names []string
	for _, a := range got.Artifacts {
		names = append(names, a.Name)
		if a.Size != int64(len("output-1")) || a.SizeLabel == "" {
			t.Errorf("Unexpected size for %s: %d %q", a.Name, a.Size, a.SizeLabel)
		}
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Artifact names mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageBundleContents(t *testing.T) {
	results := makeResults(5)
	got, err := fixedPackager().Package(results)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	bundle := got.Artifacts[0]
	if bundle.Name != "converted_1700000000123.zip" {
		t.Errorf("Unexpected archive name %s", bundle.Name)
	}

	files, err := archive.ZipCodec{}.Decompress(bundle.Data)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(files))
	}
	for _, r := range results {
		if !bytes.Equal(files[r.Name], r.Data) {
			t.Errorf("Entry %s mismatch: %q", r.Name, files[r.Name])
		}
	}
}

func TestPackageIsDeterministic(t *testing.T) {
	p := NewPackager(DefaultThreshold)
	results := makeResults(6)

	first, err := p.Package(results)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	second, err := p.Package(results)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if !bytes.Equal(first.Artifacts[0].Data, second.Artifacts[0].Data) {
		t.Error("Expected byte-identical bundles for identical input")
	}
}

func TestDownloadAll(t *testing.T) {
	p := fixedPackager()

	a, err := p.DownloadAll(makeResults(2))
	if err != nil {
		t.Fatalf("DownloadAll failed: %v", err)
	}
	if a.Name != "converted_1700000000123.zip" {
		t.Errorf("Unexpected archive name %s", a.Name)
	}
	files, err := archive.ZipCodec{}.Decompress(a.Data)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(files))
	}

	if _, err := p.DownloadAll(nil); err == nil {
		t.Error("Expected an error with no results")
	}
}

func TestNewPackagerThreshold(t *testing.T) {
	if got := NewPackager(0).Threshold(); got != DefaultThreshold {
		t.Errorf("Expected default threshold, got %d", got)
	}
	p := NewPackager(1)
	got, err := p.Package(makeResults(2))
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if got.Kind != Bundle {
		t.Errorf("Expected a bundle above a threshold of 1, got %s", got.Kind)
	}
}
