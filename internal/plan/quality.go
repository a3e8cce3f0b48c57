package plan

import "fmt"

// Tier is a named quality level.
type Tier string

const (
	TierUltra    Tier = "ultra"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierVeryLow  Tier = "verylow"
	TierLossless Tier = "lossless"
	TierCustom   Tier = "custom"
)

// Tiers lists the bitrate/crf tiers from best to smallest.
var Tiers = []Tier{TierUltra, TierHigh, TierMedium, TierLow, TierVeryLow}

// VideoTier is the encode triple a tier stands for.
type VideoTier struct {
	CRF       int    `json:"crf"`
	Preset    string `json:"preset"`
	MaxHeight int    `json:"maxHeight"`
}

var videoTiers = map[Tier]VideoTier{
	TierUltra:   {CRF: 18, Preset: "slow", MaxHeight: 2160},
	TierHigh:    {CRF: 20, Preset: "medium", MaxHeight: 1080},
	TierMedium:  {CRF: 24, Preset: "fast", MaxHeight: 1080},
	TierLow:     {CRF: 28, Preset: "faster", MaxHeight: 720},
	TierVeryLow: {CRF: 32, Preset: "veryfast", MaxHeight: 480},
}

var audioTiers = map[Tier]int{
	TierUltra:   256,
	TierHigh:    192,
	TierMedium:  160,
	TierLow:     128,
	TierVeryLow: 96,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	if t == TierLossless || t == TierCustom {
		return true
	}
	_, ok := audioTiers[t]
	return ok
}

// AudioBitrateFor returns the audio bitrate of a named tier, falling back
// to the medium tier for unknown names.
func AudioBitrateFor(t Tier) int {
	if kbps, ok := audioTiers[t]; ok {
		return kbps
	}
	return audioTiers[TierMedium]
}

// VideoTierFor returns the encode triple of a named tier, falling back to
// the medium tier for unknown names.
func VideoTierFor(t Tier) VideoTier {
	if v, ok := videoTiers[t]; ok {
		return v
	}
	return videoTiers[TierMedium]
}

// losslessFallbackVideoKbps replaces lossless video on codecs without a
// lossless mode.
const losslessFallbackVideoKbps = 8000

// VideoQuality is one of VideoLossless, VideoCRF or VideoExplicit.
type VideoQuality interface {
	isVideoQuality()
	String() string
}

// VideoLossless asks the codec for mathematically lossless output.
type VideoLossless struct{}

// VideoCRF is constant-rate-factor encoding at a speed preset, optionally
// capped in height.
type VideoCRF struct {
	CRF       int
	Preset    string
	MaxHeight int
}

// VideoExplicit carries user-entered numbers. Either field may be nil.
type VideoExplicit struct {
	CRF         *int
	BitrateKbps *int
}

func (VideoLossless) isVideoQuality() {}
func (VideoCRF) isVideoQuality()      {}
func (VideoExplicit) isVideoQuality() {}

func (VideoLossless) String() string { return "lossless" }

func (q VideoCRF) String() string {
	return fmt.Sprintf("crf %d (%s)", q.CRF, q.Preset)
}

func (q VideoExplicit) String() string {
	switch {
	case q.CRF != nil && q.BitrateKbps != nil:
		return fmt.Sprintf("crf %d, %d kbps", *q.CRF, *q.BitrateKbps)
	case q.CRF != nil:
		return fmt.Sprintf("crf %d", *q.CRF)
	case q.BitrateKbps != nil:
		return fmt.Sprintf("%d kbps", *q.BitrateKbps)
	}
	return "encoder default"
}

// AudioQuality is one of AudioLossless or AudioBitrate.
type AudioQuality interface {
	isAudioQuality()
	String() string
}

// AudioLossless keeps every sample bit.
type AudioLossless struct{}

// AudioBitrate is a target bitrate in kilobits per second.
type AudioBitrate struct {
	Kbps int
}

func (AudioLossless) isAudioQuality() {}
func (AudioBitrate) isAudioQuality()  {}

func (AudioLossless) String() string  { return "lossless" }
func (q AudioBitrate) String() string { return fmt.Sprintf("%d kbps", q.Kbps) }

// QualityChoice is the user's quality pick for one stream kind. CRF and
// BitrateKbps are only read for the custom tier.
type QualityChoice struct {
	Tier        Tier `json:"tier" yaml:"tier"`
	CRF         *int `json:"crf,omitempty" yaml:"crf,omitempty"`
	BitrateKbps *int `json:"bitrateKbps,omitempty" yaml:"bitrateKbps,omitempty"`
}
