package bundle

import (
	"fmt"
	"time"

	"media-converter/internal/archive"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/queue"
)

// DefaultThreshold is the largest result count exposed as individual files.
const DefaultThreshold = 3

// EmptyMessage is shown when a run produced nothing.
const EmptyMessage = "No output files were produced"

// Kind is how results are presented for download.
type Kind string

const (
	Empty      Kind = "empty"
	Individual Kind = "individual"
	Bundle     Kind = "bundle"
)

// Artifact is one downloadable file.
type Artifact struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	// SizeLabel is Size in human units.
	SizeLabel string `json:"sizeLabel"`
	Data      []byte `json:"-"`
}

// Presentation describes what the user can download after a run.
type Presentation struct {
	Kind      Kind       `json:"kind"`
	Message   string     `json:"message,omitempty"`
	Artifacts []Artifact `json:"artifacts"`
	Count     int        `json:"count"`
}

// Packager decides between individual downloads and a single archive.
type Packager struct {
	codec     archive.Codec
	threshold int
	now       func() time.Time
}

// NewPackager returns a packager using the zip codec. A threshold below 1
// means DefaultThreshold.
func NewPackager(threshold int) *Packager {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Packager{codec: archive.ZipCodec{}, threshold: threshold, now: time.Now}
}

// Threshold returns the individual-download limit.
func (p *Packager) Threshold() int {
	return p.threshold
}

// ArchiveName returns the download name for an archive built at t.
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("converted_%d.zip", t.UnixMilli())
}

func newArtifact(name string, data []byte) Artifact {
	return Artifact{
		Name:      name,
		Size:      int64(len(data)),
		SizeLabel: mediatypes.FormatBytes(int64(len(data))),
		Data:      data,
	}
}

func entries(results []queue.Result) []archive.Entry {
	out := make([]archive.Entry, 0, len(results))
	for _, r := range results {
		out = append(out, archive.Entry{Name: r.Name, Data: r.Data})
	}
	return out
}

// Package presents results. Up to the threshold each result is its own
// artifact; above it every result is stored, uncompressed, in one archive.
// Identical ordered input yields byte-identical archive content.
func (p *Packager) Package(results []queue.Result) (Presentation, error) {
	switch {
	case len(results) == 0:
		metrics.BundlesTotal.WithLabelValues(string(Empty)).Inc()
		return Presentation{Kind: Empty, Message: EmptyMessage, Artifacts: []Artifact{}}, nil

	case len(results) <= p.threshold:
		artifacts := make([]Artifact, 0, len(results))
		for _, r := range results {
			artifacts = append(artifacts, newArtifact(r.Name, r.Data))
		}
		metrics.BundlesTotal.WithLabelValues(string(Individual)).Inc()
		return Presentation{Kind: Individual, Artifacts: artifacts, Count: len(results)}, nil
	}

	data, err := p.codec.Compress(entries(results), archive.CompressOptions{StoreOnly: true})
	if err != nil {
		return Presentation{}, fmt.Errorf("failed to bundle results: %w", err)
	}
	metrics.BundlesTotal.WithLabelValues(string(Bundle)).Inc()
	logging.Debug("Bundled %d results into %s", len(results), mediatypes.FormatBytes(int64(len(data))))

	return Presentation{
		Kind:      Bundle,
		Artifacts: []Artifact{newArtifact(ArchiveName(p.now()), data)},
		Count:     len(results),
	}, nil
}

// DownloadAll compresses every result into one archive regardless of the
// threshold.
func (p *Packager) DownloadAll(results []queue.Result) (Artifact, error) {
	if len(results) == 0 {
		return Artifact{}, fmt.Errorf("nothing to download: %s", EmptyMessage)
	}
	data, err := p.codec.Compress(entries(results), archive.CompressOptions{})
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to build archive: %w", err)
	}
	return newArtifact(ArchiveName(p.now()), data), nil
}
