package plan

import (
	"errors"
	"fmt"
	"strings"

	"media-converter/internal/capability"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/workset"
)

// NoPreset selects the explicit container, codec and quality pickers.
const NoPreset = "none"

// ErrInvalidSelection is returned when a selection names something that
// does not exist or cannot apply to the entry.
var ErrInvalidSelection = errors.New("invalid selection")

// Selection is the user's target choice for a run. A non-empty Preset other
// than NoPreset takes precedence over the explicit fields.
type Selection struct {
	Preset          string        `json:"preset,omitempty" yaml:"preset,omitempty"`
	PresetContainer string        `json:"presetContainer,omitempty" yaml:"presetContainer,omitempty"`
	Container       string        `json:"container,omitempty" yaml:"container,omitempty"`
	VideoCodec      string        `json:"videoCodec,omitempty" yaml:"videoCodec,omitempty"`
	AudioCodec      string        `json:"audioCodec,omitempty" yaml:"audioCodec,omitempty"`
	VideoQuality    QualityChoice `json:"videoQuality" yaml:"videoQuality"`
	AudioQuality    QualityChoice `json:"audioQuality" yaml:"audioQuality"`
}

// UsesPreset reports whether the selection resolves through a preset.
func (s Selection) UsesPreset() bool {
	return s.Preset != "" && s.Preset != NoPreset
}

// Plan is the resolved, engine-ready intent for one entry. Video is nil for
// audio-only output. A plan never carries a lossless quality its codec
// cannot express.
type Plan struct {
	Mode         mediatypes.MediaType
	Container    string
	VideoCodec   string
	AudioCodec   string
	Video        VideoQuality
	Audio        AudioQuality
	IncludeAudio bool
	ScaleHeight  int
	Threads      int

	// Notes are user-facing remarks about adjustments made while resolving.
	Notes []string
}

// AudioOnly reports whether the plan drops the video stream.
func (p Plan) AudioOnly() bool {
	return p.Video == nil
}

// Describe summarizes the plan for status lines.
func (p Plan) Describe() string {
	if p.AudioOnly() {
		return fmt.Sprintf("%s (%s, %s)", p.Container, p.AudioCodec, p.Audio)
	}
	audio := "no audio"
	if p.IncludeAudio {
		audio = fmt.Sprintf("%s %s", p.AudioCodec, p.Audio)
	}
	return fmt.Sprintf("%s (%s %s, %s)", p.Container, p.VideoCodec, p.Video, audio)
}

// Resolver turns selections into plans under one capability profile.
type Resolver struct {
	profile capability.Profile
	catalog *Catalog
}

// NewResolver returns a resolver. A nil catalog means the built-in presets.
func NewResolver(profile capability.Profile, catalog *Catalog) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Resolver{profile: profile, catalog: catalog}
}

// Profile returns the capability profile plans are resolved under.
func (r *Resolver) Profile() capability.Profile {
	return r.profile
}

// Catalog returns the preset catalog.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// DefaultContainer returns the first container offered for mode.
func DefaultContainer(mode mediatypes.MediaType) string {
	if mode == mediatypes.Video {
		return VideoContainers[0].Name
	}
	return AudioContainers[0].Name
}

// Resolve produces the plan for one entry.
func (r *Resolver) Resolve(e workset.Entry, sel Selection) (Plan, error) {
	if sel.UsesPreset() {
		p, ok := r.catalog.Lookup(sel.Preset)
		if !ok {
			return Plan{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidSelection, sel.Preset)
		}
		if !p.AppliesTo(e.Type) {
			return Plan{}, fmt.Errorf("%w: preset %q does not apply to %s", ErrInvalidSelection, p.Name, e.Type)
		}
		return r.fromPreset(e, p, sel.PresetContainer)
	}

	container := sel.Container
	if container == "" {
		container = DefaultContainer(e.Type)
	}
	return r.build(e, container, sel.VideoCodec, sel.AudioCodec, sel.VideoQuality, sel.AudioQuality)
}

func (r *Resolver) fromPreset(e workset.Entry, p Preset, picked string) (Plan, error) {
	container := p.Container
	if container == "" {
		container = picked
	}
	if container == "" {
		container = DefaultContainer(e.Type)
	}

	video := QualityChoice{Tier: p.Tier}
	audio := QualityChoice{Tier: p.Tier}
	if p.AudioBitrate > 0 {
		kbps := p.AudioBitrate
		audio = QualityChoice{Tier: TierCustom, BitrateKbps: &kbps}
	}
	return r.build(e, container, p.VideoCodec, p.AudioCodec, video, audio)
}

func (r *Resolver) build(e workset.Entry, container, videoCodec, audioCodec string, video, audio QualityChoice) (Plan, error) {
	if ac, ok := LookupAudioContainer(container); ok {
		return r.audioPlan(e, ac, audioCodec, audio), nil
	}
	vc, ok := LookupVideoContainer(container)
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown container %q", ErrInvalidSelection, container)
	}
	if e.Type != mediatypes.Video {
		return Plan{}, fmt.Errorf("%w: %s is a video container", ErrInvalidSelection, container)
	}
	return r.videoPlan(e, vc, videoCodec, audioCodec, video, audio), nil
}

func (r *Resolver) audioPlan(e workset.Entry, c AudioContainer, requested string, choice QualityChoice) Plan {
	p := Plan{
		Mode:         e.Type,
		Container:    c.Name,
		AudioCodec:   pickCodec(requested, c.DefaultCodec, c.Allows),
		IncludeAudio: true,
		Threads:      r.profile.Threads(e.Type),
	}
	p.Audio = r.audioQuality(choice, requested, p.AudioCodec)
	return p
}

func (r *Resolver) videoPlan(e workset.Entry, c VideoContainer, requestedVideo, requestedAudio string, video, audio QualityChoice) Plan {
	p := Plan{
		Mode:         e.Type,
		Container:    c.Name,
		VideoCodec:   pickCodec(requestedVideo, c.DefaultVideoCodec, c.AllowsVideo),
		AudioCodec:   pickCodec(requestedAudio, c.DefaultAudioCodec, c.AllowsAudio),
		IncludeAudio: e.Analysis == nil || e.Analysis.HasAudio,
		Threads:      r.profile.Threads(e.Type),
	}
	p.Video = r.videoQuality(video, requestedVideo, p.VideoCodec, &p)
	p.Audio = r.audioQuality(audio, requestedAudio, p.AudioCodec)

	if q, ok := p.Video.(VideoCRF); ok && q.MaxHeight > 0 && p.VideoCodec != "copy" &&
		e.Analysis != nil && e.Analysis.Height > q.MaxHeight {
		p.ScaleHeight = q.MaxHeight
		metrics.PlanDowngradesTotal.WithLabelValues("resolution_cap").Inc()
		logging.Debug("plan: capping %s from %dp to %dp", e.DisplayName, e.Analysis.Height, q.MaxHeight)
	}
	return p
}

// pickCodec validates requested against the container, falling back to the
// container default.
func pickCodec(requested, fallback string, allowed func(string) bool) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return fallback
	}
	if allowed(requested) {
		return requested
	}
	metrics.PlanDowngradesTotal.WithLabelValues("codec_fallback").Inc()
	logging.Debug("plan: codec %s not allowed, using %s", requested, fallback)
	return fallback
}

// feasible reports whether lossless survives resolution: the codec left
// after container fallback must support it, and so must the requested
// codec when one was given.
func feasible(check func(string) bool, requested, resolved string) bool {
	if !check(resolved) {
		return false
	}
	requested = strings.TrimSpace(requested)
	return requested == "" || check(requested)
}

// audioQuality resolves the audio quality for the codec resolved from
// requested.
func (r *Resolver) audioQuality(choice QualityChoice, requested, codec string) AudioQuality {
	switch choice.Tier {
	case TierLossless:
		if feasible(r.profile.LosslessAudioFeasible, requested, codec) {
			return AudioLossless{}
		}
		metrics.PlanDowngradesTotal.WithLabelValues("lossless_audio").Inc()
		logging.Debug("plan: %s cannot carry lossless audio, using %d kbps", codec, audioTiers[TierUltra])
		return AudioBitrate{Kbps: audioTiers[TierUltra]}
	case TierCustom:
		if choice.BitrateKbps != nil && *choice.BitrateKbps > 0 {
			return AudioBitrate{Kbps: *choice.BitrateKbps}
		}
		return AudioBitrate{Kbps: audioTiers[TierUltra]}
	default:
		return AudioBitrate{Kbps: AudioBitrateFor(choice.Tier)}
	}
}

const maxCRF = 63

func (r *Resolver) videoQuality(choice QualityChoice, requested, codec string, p *Plan) VideoQuality {
	switch choice.Tier {
	case TierLossless:
		if feasible(r.profile.LosslessVideoFeasible, requested, codec) {
			return VideoLossless{}
		}
		metrics.PlanDowngradesTotal.WithLabelValues("lossless_video").Inc()
		logging.Debug("plan: %s has no lossless mode, using %d kbps", codec, losslessFallbackVideoKbps)
		kbps := losslessFallbackVideoKbps
		return VideoExplicit{BitrateKbps: &kbps}
	case TierCustom:
		var q VideoExplicit
		if choice.CRF != nil && *choice.CRF >= 0 && *choice.CRF <= maxCRF {
			crf := *choice.CRF
			q.CRF = &crf
		}
		if choice.BitrateKbps != nil && *choice.BitrateKbps > 0 {
			kbps := *choice.BitrateKbps
			q.BitrateKbps = &kbps
		}
		return q
	default:
		t := VideoTierFor(choice.Tier)
		preset := r.profile.Preset(t.Preset)
		if preset != t.Preset {
			metrics.PlanDowngradesTotal.WithLabelValues("preset_speed").Inc()
			note := fmt.Sprintf("Using the faster %q encoder preset instead of %q on this device", preset, t.Preset)
			p.Notes = append(p.Notes, note)
			logging.Info("%s", note)
		}
		return VideoCRF{CRF: t.CRF, Preset: preset, MaxHeight: t.MaxHeight}
	}
}
