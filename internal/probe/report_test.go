package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func readLog(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestParseReportVideo(t *testing.T) {
	got := ParseReport(readLog(t, "movie_mp4.log"), "mp4")

	want := Descriptor{
		Container:            "mov",
		AudioCodec:           "aac",
		VideoCodec:           "h264",
		HasAudio:             true,
		HasVideo:             true,
		Width:                1920,
		Height:               1080,
		FrameRate:            29.97,
		DurationSeconds:      90.5,
		BitrateBitsPerSecond: 5128000,
		Tags: map[string]string{
			"major_brand":       "isom",
			"minor_version":     "512",
			"compatible_brands": "isomiso2avc1mp41",
			"title":             "Holiday",
			"encoder":           "Lavf60.3.100",
			"handler_name":      "VideoHandler",
			"vendor_id":         "[0][0][0][0]",
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseReport mismatch (-want +got):\n%s", diff)
	}
	if got.Resolution() != "1920x1080" {
		t.Errorf("Expected resolution 1920x1080, got %s", got.Resolution())
	}
}

func TestParseReportAudio(t *testing.T) {
	got := ParseReport(readLog(t, "song_flac.log"), "flac")

	if got.Container != "flac" || got.AudioCodec != "flac" || !got.HasAudio {
		t.Errorf("Unexpected audio fields: %+v", got)
	}
	if got.HasVideo || got.VideoCodec != "" {
		t.Errorf("Expected no video, got %+v", got)
	}
	if got.HasResolution() {
		t.Errorf("Expected no resolution, got %s", got.Resolution())
	}
	if got.DurationSeconds != 185.25 {
		t.Errorf("Expected duration 185.25, got %v", got.DurationSeconds)
	}
	if got.Tags["TITLE"] != "A Song" || got.Tags["ARTIST"] != "Somebody" {
		t.Errorf("Unexpected tags %v", got.Tags)
	}
}

func TestParseReportUnparseable(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{"Empty", ""},
		{"Error only", "staging/x.wav: Invalid data found when processing input"},
		{"Duration not available", "  Duration: N/A, bitrate: N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReport(tt.log, "wav")
			if diff := cmp.Diff(Descriptor{Container: "wav"}, got); diff != "" {
				t.Errorf("Expected only the fallback container (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseReportIgnoresHexCodecTags(t *testing.T) {
	log := "  Stream #0:0: Video: mpeg4 (Simple Profile) (mp4v / 0x7634706D), yuv420p, 640x480, 25 fps"
	got := ParseReport(log, "avi")

	if got.Width != 640 || got.Height != 480 {
		t.Errorf("Expected 640x480, got %dx%d", got.Width, got.Height)
	}
	if got.FrameRate != 25 {
		t.Errorf("Expected 25 fps, got %v", got.FrameRate)
	}
}

func TestParseMetadataFirstValueWins(t *testing.T) {
	log := "  Metadata:\n    title : first\n    title : second\n  Duration: 00:00:01.00\n    Metadata:\n      title : third\n      album : Later"
	got := parseMetadata(log)

	want := map[string]string{"title": "first", "album": "Later"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseMetadata mismatch (-want +got):\n%s", diff)
	}
}
