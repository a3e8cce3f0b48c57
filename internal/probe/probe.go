package probe

import (
	"context"
	"fmt"
	"time"

	"media-converter/internal/engine"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
)

// Stager places an entry's bytes in the engine filesystem and returns the
// engine path. Implementations reuse an existing staged copy.
type Stager interface {
	Stage(ctx context.Context, id string) (string, error)
}

// Target identifies the entry to probe.
type Target struct {
	ID        string
	Extension string
	Type      mediatypes.MediaType
}

// Prober runs metadata-only engine passes and parses their reports.
// Calls must not overlap with other engine calls sharing the same log
// buffer, since the report is read back by buffer position.
type Prober struct {
	engine engine.Engine
	logs   *engine.LogBuffer
}

// NewProber returns a Prober reading reports from logs, which must be
// attached to eng.
func NewProber(eng engine.Engine, logs *engine.LogBuffer) *Prober {
	return &Prober{engine: eng, logs: logs}
}

// Probe stages the entry through st and inspects it. A descriptor is always
// returned; the error reports a staging or engine failure, in which case
// the descriptor holds whatever could be parsed.
func (p *Prober) Probe(ctx context.Context, st Stager, t Target) (Descriptor, error) {
	fallback := t.Extension
	if fallback == "" {
		fallback = "dat"
	}

	path, err := st.Stage(ctx, t.ID)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues("partial").Inc()
		return p.finish(Descriptor{Container: fallback}, t.Type), fmt.Errorf("failed to stage %s: %w", t.ID, err)
	}

	d, err := p.ProbePath(ctx, path, fallback)
	return p.finish(d, t.Type), err
}

// finish applies the entry's classification: a video entry always counts
// as having video, even when the report named no codec.
func (p *Prober) finish(d Descriptor, t mediatypes.MediaType) Descriptor {
	if t == mediatypes.Video && !d.HasVideo {
		d.HasVideo = true
		d.VideoCodec = UnknownCodec
	}
	return d
}

// ProbePath inspects a file already present in the engine filesystem.
func (p *Prober) ProbePath(ctx context.Context, path, fallbackContainer string) (Descriptor, error) {
	start := time.Now()
	mark := p.logs.Mark()

	// The inspection has no output file, so a non-zero exit is expected.
	code, err := p.engine.Exec(ctx, []string{"-hide_banner", "-loglevel", "info", "-i", path})

	d := ParseReport(p.logs.TextSince(mark), fallbackContainer)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProbesTotal.WithLabelValues("partial").Inc()
		logging.Warn("Probe of %s failed: %v", path, err)
		return d, fmt.Errorf("probe %s: %w", path, err)
	}

	metrics.ProbesTotal.WithLabelValues("success").Inc()
	logging.Debug("Probed %s (exit %d): container=%s audio=%s video=%s", path, code, d.Container, d.AudioCodec, d.VideoCodec)
	return d, nil
}
