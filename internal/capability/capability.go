package capability

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
	"media-converter/internal/workers"
)

// DeviceClass is the coarse host category the policy is derived for.
type DeviceClass string

const (
	Desktop DeviceClass = "desktop"
	Mobile  DeviceClass = "mobile"
)

const (
	constrainedCores  = 2
	constrainedMemory = 2 << 30

	maxAudioThreads = 4
	maxVideoThreads = 8
)

// speedLadder orders encoder speed presets from slowest to fastest.
var speedLadder = []string{"slow", "medium", "fast", "faster", "veryfast", "ultrafast"}

// presetSteps is how many rungs a preset moves when faster presets are preferred.
const presetSteps = 2

var losslessAudioCodecs = map[string]bool{
	"flac":      true,
	"alac":      true,
	"pcm_s16le": true,
	"pcm_s24le": true,
	"pcm_s32le": true,
	"pcm_f32le": true,
	"pcm_f64le": true,
	"pcm_s16be": true,
	"pcm_s24be": true,
	"pcm_s32be": true,
	"pcm_f32be": true,
	"pcm_f64be": true,
}

var losslessVideoCodecs = map[string]bool{
	"libx264":    true,
	"libx265":    true,
	"libvpx-vp9": true,
	"libaom-av1": true,
	"ffv1":       true,
}

// Signals are the raw host observations a Profile is computed from.
type Signals struct {
	ThreadsSupported bool
	Cores            int
	MemoryBytes      uint64
	Mobile           bool
}

// Profile is the encode policy for this host. It is computed once and
// never mutated.
type Profile struct {
	DeviceClass         DeviceClass `json:"deviceClass"`
	Constrained         bool        `json:"constrained"`
	AudioThreads        int         `json:"audioThreads"`
	VideoThreads        int         `json:"videoThreads"`
	PreferFasterPresets bool        `json:"preferFasterPresets"`
}

// DetectSignals samples the host. deviceClass ("mobile" or "desktop")
// overrides the platform heuristic when set.
func DetectSignals(ctx context.Context, deviceClass string) Signals {
	s := Signals{
		ThreadsSupported: workers.Available() > 1,
		Cores:            workers.Available(),
	}

	if logical, err := cpu.CountsWithContext(ctx, true); err == nil && logical > 0 && logical < s.Cores {
		s.Cores = logical
	} else if err != nil {
		logging.Debug("capability: cpu count unavailable: %v", err)
	}

	if limit := memory.CurrentLimit(); limit > 0 {
		s.MemoryBytes = uint64(limit)
	} else if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryBytes = vm.Total
	} else {
		logging.Debug("capability: memory size unavailable: %v", err)
	}

	switch DeviceClass(strings.ToLower(strings.TrimSpace(deviceClass))) {
	case Mobile:
		s.Mobile = true
	case Desktop:
		s.Mobile = false
	default:
		s.Mobile = runtime.GOOS == "android" || runtime.GOOS == "ios"
	}

	return s
}

// New derives a Profile from host signals.
func New(s Signals) Profile {
	p := Profile{DeviceClass: Desktop}
	if s.Mobile {
		p.DeviceClass = Mobile
	}

	p.Constrained = !s.ThreadsSupported ||
		s.Mobile ||
		s.Cores <= constrainedCores ||
		(s.MemoryBytes > 0 && s.MemoryBytes < constrainedMemory)

	if p.Constrained {
		p.AudioThreads = 1
		p.VideoThreads = 1
		p.PreferFasterPresets = true
		return p
	}

	p.AudioThreads = min(workers.ForCPU(maxAudioThreads), s.Cores)
	p.VideoThreads = min(workers.ForCPU(maxVideoThreads), s.Cores)
	return p
}

// Detect samples the host and returns its Profile.
func Detect(ctx context.Context, deviceClass string) Profile {
	s := DetectSignals(ctx, deviceClass)
	p := New(s)
	logging.Info("Capability profile: class=%s cores=%d memory=%s constrained=%v threads(audio=%d video=%d)",
		p.DeviceClass, s.Cores, mediatypes.FormatBytes(int64(s.MemoryBytes)), p.Constrained, p.AudioThreads, p.VideoThreads)
	return p
}

// Threads returns the encoder thread count for a processing mode.
func (p Profile) Threads(t mediatypes.MediaType) int {
	if t == mediatypes.Video {
		return p.VideoThreads
	}
	return p.AudioThreads
}

// Preset maps a speed preset onto the one to actually use. Unknown names
// pass through unchanged.
func (p Profile) Preset(name string) string {
	if !p.PreferFasterPresets {
		return name
	}
	for i, rung := range speedLadder {
		if rung == name {
			return speedLadder[min(i+presetSteps, len(speedLadder)-1)]
		}
	}
	return name
}

// LosslessAudioFeasible reports whether codec can carry lossless audio:
// stream copy or an inherently lossless codec. Re-encoding to the source
// codec is a lossy generation and does not qualify.
func (p Profile) LosslessAudioFeasible(codec string) bool {
	c := strings.ToLower(codec)
	return c == "copy" || losslessAudioCodecs[c]
}

// LosslessVideoFeasible reports whether codec has a lossless mode.
func (p Profile) LosslessVideoFeasible(codec string) bool {
	c := strings.ToLower(codec)
	return c == "copy" || losslessVideoCodecs[c]
}
