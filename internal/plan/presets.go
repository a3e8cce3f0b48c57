package plan

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
)

// Preset is a named container and quality bundle. When Container is empty
// the caller supplies one from the mode's container list.
type Preset struct {
	Name         string                 `json:"name" yaml:"name"`
	Label        string                 `json:"label" yaml:"label"`
	Tier         Tier                   `json:"tier" yaml:"tier"`
	Modes        []mediatypes.MediaType `json:"modes" yaml:"modes"`
	Container    string                 `json:"container,omitempty" yaml:"container,omitempty"`
	VideoCodec   string                 `json:"videoCodec,omitempty" yaml:"videoCodec,omitempty"`
	AudioCodec   string                 `json:"audioCodec,omitempty" yaml:"audioCodec,omitempty"`
	AudioBitrate int                    `json:"audioBitrate,omitempty" yaml:"audioBitrate,omitempty"`
}

// AppliesTo reports whether the preset is offered for mode.
func (p Preset) AppliesTo(mode mediatypes.MediaType) bool {
	return len(p.Modes) == 0 || slices.Contains(p.Modes, mode)
}

var bothModes = []mediatypes.MediaType{mediatypes.Audio, mediatypes.Video}

// builtinPresets are offered when no presets file overrides them.
var builtinPresets = []Preset{
	{Name: "ultra", Label: "Ultra quality", Tier: TierUltra, Modes: bothModes},
	{Name: "high", Label: "High quality", Tier: TierHigh, Modes: bothModes},
	{Name: "medium", Label: "Balanced", Tier: TierMedium, Modes: bothModes},
	{Name: "low", Label: "Small file", Tier: TierLow, Modes: bothModes},
	{Name: "verylow", Label: "Smallest file", Tier: TierVeryLow, Modes: bothModes},
	{
		Name: "mp3-192", Label: "Extract audio as MP3 192kbps", Tier: TierHigh, Modes: bothModes,
		Container: "mp3", AudioCodec: "libmp3lame", AudioBitrate: 192,
	},
	{
		Name: "flac-lossless", Label: "Lossless FLAC", Tier: TierLossless, Modes: bothModes,
		Container: "flac", AudioCodec: "flac",
	},
	{
		Name: "m4a-aac-128", Label: "AAC 128kbps (M4A)", Tier: TierLow, Modes: bothModes,
		Container: "m4a", AudioCodec: "aac", AudioBitrate: 128,
	},
	{
		Name: "mp4-h264-high", Label: "MP4 H.264 high quality", Tier: TierHigh, Modes: []mediatypes.MediaType{mediatypes.Video},
		Container: "mp4", VideoCodec: "libx264", AudioCodec: "aac",
	},
	{
		Name: "webm-vp9-medium", Label: "WebM VP9 balanced", Tier: TierMedium, Modes: []mediatypes.MediaType{mediatypes.Video},
		Container: "webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus",
	},
}

// Catalog is an ordered, name-indexed preset list.
type Catalog struct {
	presets []Preset
	byName  map[string]int
}

// DefaultCatalog returns the built-in presets.
func DefaultCatalog() *Catalog {
	c := &Catalog{byName: make(map[string]int)}
	for _, p := range builtinPresets {
		c.put(p)
	}
	return c
}

func (c *Catalog) put(p Preset) {
	if i, ok := c.byName[p.Name]; ok {
		c.presets[i] = p
		return
	}
	c.byName[p.Name] = len(c.presets)
	c.presets = append(c.presets, p)
}

// Lookup finds a preset by name.
func (c *Catalog) Lookup(name string) (Preset, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Preset{}, false
	}
	return c.presets[i], true
}

// List returns the presets offered for mode, or all of them when mode is
// empty.
func (c *Catalog) List(mode mediatypes.MediaType) []Preset {
	out := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		if mode == "" || p.AppliesTo(mode) {
			out = append(out, p)
		}
	}
	return out
}

type presetsFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadCatalog returns the built-in presets merged with the YAML file at
// path. File entries replace built-ins of the same name and new names are
// appended. An empty path yields the built-ins.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets file %s: %w", path, err)
	}

	for i, p := range file.Presets {
		if err := validatePreset(p); err != nil {
			return nil, fmt.Errorf("preset %d in %s: %w", i+1, path, err)
		}
		c.put(p)
	}
	logging.Info("Loaded %d presets from %s", len(file.Presets), path)
	return c, nil
}

func validatePreset(p Preset) error {
	if p.Name == "" {
		return errors.New("missing name")
	}
	if p.Name == NoPreset {
		return fmt.Errorf("%q is reserved", NoPreset)
	}
	if !p.Tier.Valid() || p.Tier == TierCustom {
		return fmt.Errorf("%s: unsupported tier %q", p.Name, p.Tier)
	}
	for _, m := range p.Modes {
		if !m.Valid() {
			return fmt.Errorf("%s: unknown mode %q", p.Name, m)
		}
	}
	if p.Container == "" {
		return nil
	}
	if _, ok := LookupAudioContainer(p.Container); ok {
		return nil
	}
	if _, ok := LookupVideoContainer(p.Container); ok {
		return nil
	}
	return fmt.Errorf("%s: unknown container %q", p.Name, p.Container)
}
