package probe

import (
	"regexp"
	"strconv"
	"strings"

	"media-converter/internal/mediatypes"
)

// UnknownCodec marks a stream whose codec name could not be read.
const UnknownCodec = "unknown"

var (
	audioPattern      = regexp.MustCompile(`(?i)Audio:\s*([^,\s]+)`)
	videoPattern      = regexp.MustCompile(`(?i)Video:\s*([^,\s]+)`)
	containerPattern  = regexp.MustCompile(`(?i)Input #0,\s*([^,]+),`)
	resolutionPattern = regexp.MustCompile(`\b(\d{2,})x(\d{2,})\b`)
	frameRatePattern  = regexp.MustCompile(`\s([\d.]+)\s*fps`)
	durationPattern   = regexp.MustCompile(`Duration:\s*(\d+:\d{2}:\d{2}(?:\.\d+)?)`)
	bitratePattern    = regexp.MustCompile(`(?i)bitrate:\s*(\d+)\s*kb/s`)
	metadataKeyValue  = regexp.MustCompile(`^(\s+)([^:]+?)\s*:\s?(.*)$`)
)

// Descriptor is what probing learned about one input. Zero values mean the
// field was not found: an empty codec, zero dimensions, zero frame rate,
// zero duration or zero bitrate.
type Descriptor struct {
	Container            string            `json:"container"`
	AudioCodec           string            `json:"audioCodec,omitempty"`
	VideoCodec           string            `json:"videoCodec,omitempty"`
	HasAudio             bool              `json:"hasAudio"`
	HasVideo             bool              `json:"hasVideo"`
	Width                int               `json:"width,omitempty"`
	Height               int               `json:"height,omitempty"`
	FrameRate            float64           `json:"frameRate,omitempty"`
	DurationSeconds      float64           `json:"durationSeconds,omitempty"`
	BitrateBitsPerSecond int64             `json:"bitrate,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

// HasResolution reports whether both dimensions are known.
func (d Descriptor) HasResolution() bool {
	return d.Width > 0 && d.Height > 0
}

// Resolution renders "WxH" or the placeholder.
func (d Descriptor) Resolution() string {
	if !d.HasResolution() {
		return mediatypes.Placeholder
	}
	return strconv.Itoa(d.Width) + "x" + strconv.Itoa(d.Height)
}

// ParseReport extracts a Descriptor from an ffmpeg inspection log. It never
// fails: every field is independently optional, and the container falls
// back to fallbackContainer when the report names none.
func ParseReport(log, fallbackContainer string) Descriptor {
	d := Descriptor{Container: fallbackContainer}

	if m := containerPattern.FindStringSubmatch(log); m != nil {
		if c := strings.TrimSpace(m[1]); c != "" {
			d.Container = c
		}
	}

	if m := audioPattern.FindStringSubmatch(log); m != nil {
		d.AudioCodec = strings.ToLower(m[1])
		d.HasAudio = true
	}

	if m := videoPattern.FindStringSubmatch(log); m != nil {
		d.VideoCodec = strings.ToLower(m[1])
		d.HasVideo = true
	}

	if line := videoStreamLine(log); line != "" {
		if m := resolutionPattern.FindStringSubmatch(line); m != nil {
			w, errW := strconv.Atoi(m[1])
			h, errH := strconv.Atoi(m[2])
			if errW == nil && errH == nil && w > 0 && h > 0 {
				d.Width, d.Height = w, h
			}
		}
	}

	if m := frameRatePattern.FindStringSubmatch(log); m != nil {
		if fps, err := strconv.ParseFloat(m[1], 64); err == nil && fps > 0 {
			d.FrameRate = fps
		}
	}

	if m := durationPattern.FindStringSubmatch(log); m != nil {
		if secs, ok := mediatypes.ParseClock(m[1]); ok {
			d.DurationSeconds = secs
		}
	}

	if m := bitratePattern.FindStringSubmatch(log); m != nil {
		if kbps, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			d.BitrateBitsPerSecond = kbps * 1000
		}
	}

	d.Tags = parseMetadata(log)
	return d
}

func videoStreamLine(log string) string {
	for _, line := range strings.Split(log, "\n") {
		if videoPattern.MatchString(line) {
			return line
		}
	}
	return ""
}

// parseMetadata collects indented "key : value" lines that follow a
// "Metadata:" marker. A block ends at the first line that is not a more
// deeply indented key/value pair. The first value seen for a key wins.
func parseMetadata(log string) map[string]string {
	var tags map[string]string

	lines := strings.Split(log, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) != "Metadata:" {
			continue
		}
		markerIndent := len(line) - len(strings.TrimLeft(line, " \t"))

		for i+1 < len(lines) {
			next := strings.TrimRight(lines[i+1], "\r")
			m := metadataKeyValue.FindStringSubmatch(next)
			if m == nil || len(m[1]) <= markerIndent {
				break
			}
			i++
			key := strings.TrimSpace(m[2])
			if key == "" {
				continue
			}
			if tags == nil {
				tags = make(map[string]string)
			}
			if _, seen := tags[key]; !seen {
				tags[key] = strings.TrimSpace(m[3])
			}
		}
	}
	return tags
}
