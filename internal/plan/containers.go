package plan

import "slices"

// AudioContainer describes an audio output format and the codecs it may
// carry. A nil Codecs list accepts any codec.
type AudioContainer struct {
	Name         string   `json:"name" yaml:"name"`
	Label        string   `json:"label" yaml:"label"`
	Codecs       []string `json:"codecs" yaml:"codecs"`
	DefaultCodec string   `json:"defaultCodec" yaml:"defaultCodec"`
}

// Allows reports whether codec may be written into the container.
func (c AudioContainer) Allows(codec string) bool {
	if codec == "" {
		return false
	}
	return c.Codecs == nil || slices.Contains(c.Codecs, codec)
}

// VideoContainer describes a video output format.
type VideoContainer struct {
	Name              string   `json:"name" yaml:"name"`
	Label             string   `json:"label" yaml:"label"`
	VideoCodecs       []string `json:"videoCodecs" yaml:"videoCodecs"`
	AudioCodecs       []string `json:"audioCodecs" yaml:"audioCodecs"`
	DefaultVideoCodec string   `json:"defaultVideoCodec" yaml:"defaultVideoCodec"`
	DefaultAudioCodec string   `json:"defaultAudioCodec" yaml:"defaultAudioCodec"`
}

// AllowsVideo reports whether codec is a permitted video codec.
func (c VideoContainer) AllowsVideo(codec string) bool {
	return codec != "" && slices.Contains(c.VideoCodecs, codec)
}

// AllowsAudio reports whether codec is a permitted audio codec.
func (c VideoContainer) AllowsAudio(codec string) bool {
	return codec != "" && slices.Contains(c.AudioCodecs, codec)
}

// AudioContainers lists the audio output formats in picker order.
var AudioContainers = []AudioContainer{
	{Name: "flac", Label: "FLAC (lossless)", Codecs: []string{"flac"}, DefaultCodec: "flac"},
	{Name: "wav", Label: "WAV (PCM)", Codecs: []string{"pcm_s16le", "pcm_s24le", "pcm_f32le"}, DefaultCodec: "pcm_s16le"},
	{Name: "m4a", Label: "M4A (AAC/ALAC)", Codecs: []string{"aac", "alac"}, DefaultCodec: "aac"},
	{Name: "mp3", Label: "MP3", Codecs: []string{"libmp3lame"}, DefaultCodec: "libmp3lame"},
	{Name: "ogg", Label: "OGG (Opus/Vorbis)", Codecs: []string{"libopus", "libvorbis"}, DefaultCodec: "libopus"},
	{Name: "opus", Label: "Opus", Codecs: []string{"libopus"}, DefaultCodec: "libopus"},
	{Name: "aac", Label: "AAC (ADTS)", Codecs: []string{"aac"}, DefaultCodec: "aac"},
	{Name: "wma", Label: "WMA", Codecs: []string{"wmav2"}, DefaultCodec: "wmav2"},
	{Name: "mka", Label: "Matroska Audio", Codecs: nil, DefaultCodec: "copy"},
}

// VideoContainers lists the video output formats in picker order.
var VideoContainers = []VideoContainer{
	{
		Name: "mp4", Label: "MP4",
		VideoCodecs: []string{"libx264", "libx265", "copy"}, AudioCodecs: []string{"aac", "ac3", "libmp3lame", "copy"},
		DefaultVideoCodec: "libx264", DefaultAudioCodec: "aac",
	},
	{
		Name: "mkv", Label: "Matroska",
		VideoCodecs: []string{"libx264", "libx265", "libvpx-vp9", "copy"}, AudioCodecs: []string{"aac", "libopus", "flac", "copy"},
		DefaultVideoCodec: "libx264", DefaultAudioCodec: "aac",
	},
	{
		Name: "mov", Label: "QuickTime",
		VideoCodecs: []string{"libx264", "libx265", "copy"}, AudioCodecs: []string{"aac", "alac", "copy"},
		DefaultVideoCodec: "libx264", DefaultAudioCodec: "aac",
	},
	{
		Name: "webm", Label: "WebM",
		VideoCodecs: []string{"libvpx-vp9", "libaom-av1", "copy"}, AudioCodecs: []string{"libopus", "libvorbis", "copy"},
		DefaultVideoCodec: "libvpx-vp9", DefaultAudioCodec: "libopus",
	},
	{
		Name: "avi", Label: "AVI",
		VideoCodecs: []string{"libx264", "mpeg4", "copy"}, AudioCodecs: []string{"libmp3lame", "ac3", "copy"},
		DefaultVideoCodec: "libx264", DefaultAudioCodec: "libmp3lame",
	},
	{
		Name: "ts", Label: "MPEG-TS",
		VideoCodecs: []string{"libx264", "mpeg2video", "copy"}, AudioCodecs: []string{"aac", "ac3", "mp2", "copy"},
		DefaultVideoCodec: "libx264", DefaultAudioCodec: "aac",
	},
}

// LookupAudioContainer finds an audio container by name.
func LookupAudioContainer(name string) (AudioContainer, bool) {
	for _, c := range AudioContainers {
		if c.Name == name {
			return c, true
		}
	}
	return AudioContainer{}, false
}

// LookupVideoContainer finds a video container by name.
func LookupVideoContainer(name string) (VideoContainer, bool) {
	for _, c := range VideoContainers {
		if c.Name == name {
			return c, true
		}
	}
	return VideoContainer{}, false
}
