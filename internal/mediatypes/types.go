package mediatypes

import "strings"

// MediaType is the processing mode an entry belongs to.
type MediaType string

const (
	// Audio entries are converted with the audio pickers and containers.
	Audio MediaType = "audio"
	// Video entries are converted with the video pickers and containers.
	Video MediaType = "video"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	return t == Audio || t == Video
}

// Other returns the opposite processing mode.
func (t MediaType) Other() MediaType {
	if t == Audio {
		return Video
	}
	return Audio
}

// ParseMediaType converts a user-supplied mode string into a MediaType.
func ParseMediaType(s string) (MediaType, bool) {
	t := MediaType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// AudioExtensions lists extensions treated as audio input.
var AudioExtensions = map[string]bool{
	"aac":  true,
	"ac3":  true,
	"aiff": true,
	"alac": true,
	"amr":  true,
	"ape":  true,
	"dts":  true,
	"flac": true,
	"m2a":  true,
	"m4a":  true,
	"mka":  true,
	"mp2":  true,
	"mp3":  true,
	"ogg":  true,
	"opus": true,
	"wav":  true,
	"wma":  true,
	"wv":   true,
}

// VideoExtensions lists extensions treated as video input.
var VideoExtensions = map[string]bool{
	"3gp":  true,
	"3g2":  true,
	"avi":  true,
	"flv":  true,
	"m2ts": true,
	"m4v":  true,
	"mkv":  true,
	"mov":  true,
	"mp4":  true,
	"mpg":  true,
	"mpeg": true,
	"mts":  true,
	"mxf":  true,
	"ts":   true,
	"vob":  true,
	"webm": true,
	"wmv":  true,
}

// workspaceExtras are accepted by the workspace tree in addition to the
// converter's audio and video sets.
var workspaceExtras = map[string]bool{
	"aif":  true,
	"asf":  true,
	"caf":  true,
	"eac3": true,
	"oga":  true,
	"ogv":  true,
}

// IsVideo reports whether a file is video by MIME hint or extension.
func IsVideo(name, mimeHint string) bool {
	if strings.HasPrefix(strings.ToLower(mimeHint), "video/") {
		return true
	}
	return VideoExtensions[Extension(name)]
}

// IsAudio reports whether a file is audio by MIME hint or extension.
func IsAudio(name, mimeHint string) bool {
	if strings.HasPrefix(strings.ToLower(mimeHint), "audio/") {
		return true
	}
	return AudioExtensions[Extension(name)]
}

// Classify returns the media type of a file. Video wins when both the
// audio and video rules match (an .mp4 with an audio/mp4 hint, for example).
func Classify(name, mimeHint string) (MediaType, bool) {
	switch {
	case IsVideo(name, mimeHint):
		return Video, true
	case IsAudio(name, mimeHint):
		return Audio, true
	default:
		return "", false
	}
}

// Matches reports whether a file belongs to the given processing mode.
func Matches(t MediaType, name, mimeHint string) bool {
	got, ok := Classify(name, mimeHint)
	return ok && got == t
}

// IsWorkspaceMedia reports whether the workspace tree should probe a file.
func IsWorkspaceMedia(name string) bool {
	ext := Extension(name)
	return AudioExtensions[ext] || VideoExtensions[ext] || workspaceExtras[ext]
}

// IsArchive reports whether a file name denotes a zip archive.
func IsArchive(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".zip")
}
