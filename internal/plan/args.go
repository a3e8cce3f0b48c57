package plan

import (
	"fmt"
	"strconv"

	"media-converter/internal/mediatypes"
)

// Args builds the engine argument list that converts input into output
// according to p.
func Args(p Plan, input, output string) []string {
	args := []string{"-y", "-i", input}

	if p.AudioOnly() {
		args = append(args, "-c:a", p.AudioCodec)
		args = appendAudioQuality(args, p.AudioCodec, p.Audio)
		args = append(args, "-vn")
	} else {
		args = append(args, "-c:v", p.VideoCodec)
		if p.VideoCodec != "copy" {
			args = appendVideoQuality(args, p.VideoCodec, p.Video)
			if p.ScaleHeight > 0 {
				args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", p.ScaleHeight))
			}
		}
		if p.IncludeAudio {
			args = append(args, "-c:a", p.AudioCodec)
			args = appendAudioQuality(args, p.AudioCodec, p.Audio)
		} else {
			args = append(args, "-an")
		}
	}

	if p.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(p.Threads))
	}
	return append(args, output)
}

func appendAudioQuality(args []string, codec string, q AudioQuality) []string {
	if codec == "copy" {
		return args
	}
	if b, ok := q.(AudioBitrate); ok && b.Kbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", b.Kbps))
	}
	return args
}

// hasSpeedPresets lists encoders that accept -preset.
var hasSpeedPresets = map[string]bool{
	"libx264": true,
	"libx265": true,
}

func appendVideoQuality(args []string, codec string, q VideoQuality) []string {
	switch q := q.(type) {
	case VideoLossless:
		switch codec {
		case "libx264":
			return append(args, "-preset", "slow", "-crf", "0")
		case "libx265":
			return append(args, "-preset", "slow", "-x265-params", "lossless=1")
		case "libvpx-vp9":
			return append(args, "-lossless", "1")
		case "ffv1":
			return args
		default:
			return append(args, "-crf", "0")
		}
	case VideoCRF:
		if q.Preset != "" && hasSpeedPresets[codec] {
			args = append(args, "-preset", q.Preset)
		}
		args = append(args, "-crf", strconv.Itoa(q.CRF))
		if codec == "libvpx-vp9" {
			args = append(args, "-b:v", "0")
		}
	case VideoExplicit:
		if q.CRF != nil {
			args = append(args, "-crf", strconv.Itoa(*q.CRF))
		}
		if q.BitrateKbps != nil {
			args = append(args, "-b:v", fmt.Sprintf("%dk", *q.BitrateKbps))
		}
	}
	return args
}

// OutputName derives the output file name for an entry and claims it in
// taken. Names that sanitize to nothing become media_<index+1>.
func OutputName(displayName, container string, taken *mediatypes.NameSet, index int) string {
	base := mediatypes.SanitizeName(mediatypes.BaseName(mediatypes.DisplayLabel(displayName)))
	if base == "" {
		base = fmt.Sprintf("media_%d", index+1)
	}
	return taken.Claim(base + "." + container)
}
