package mediatypes

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		mime     string
		wantType MediaType
		wantOK   bool
	}{
		{name: "MP3 by extension", file: "song.mp3", wantType: Audio, wantOK: true},
		{name: "Uppercase extension", file: "SONG.FLAC", wantType: Audio, wantOK: true},
		{name: "MKV by extension", file: "clip.mkv", wantType: Video, wantOK: true},
		{name: "Video wins over audio hint", file: "movie.mp4", mime: "audio/mp4", wantType: Video, wantOK: true},
		{name: "Audio by MIME only", file: "blob", mime: "audio/ogg", wantType: Audio, wantOK: true},
		{name: "Video by MIME only", file: "blob", mime: "video/webm", wantType: Video, wantOK: true},
		{name: "Text file", file: "notes.txt", wantOK: false},
		{name: "No extension", file: "README", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.file, tt.mime)
			if ok != tt.wantOK {
				t.Fatalf("Classify(%q, %q) ok = %v, want %v", tt.file, tt.mime, ok, tt.wantOK)
			}
			if ok && got != tt.wantType {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.file, tt.mime, got, tt.wantType)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	if !Matches(Audio, "a.wav", "") {
		t.Error("Expected a.wav to match audio mode")
	}
	if Matches(Audio, "a.mkv", "") {
		t.Error("Expected a.mkv not to match audio mode")
	}
	if Matches(Video, "a.txt", "") {
		t.Error("Expected a.txt not to match video mode")
	}
}

func TestIsArchive(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"bundle.zip", true},
		{"BUNDLE.ZIP", true},
		{"nested/inner.zip", true},
		{"zip", false},
		{"bundle.zip.mp3", false},
	}

	for _, tt := range tests {
		if got := IsArchive(tt.name); got != tt.want {
			t.Errorf("IsArchive(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseMediaType(t *testing.T) {
	if got, ok := ParseMediaType(" Video "); !ok || got != Video {
		t.Errorf("Expected Video, got %q (ok=%v)", got, ok)
	}
	if _, ok := ParseMediaType("image"); ok {
		t.Error("Expected image to be rejected")
	}
	if Audio.Other() != Video || Video.Other() != Audio {
		t.Error("Other() should swap modes")
	}
}

func TestIsWorkspaceMedia(t *testing.T) {
	for _, name := range []string{"a.caf", "b.ogv", "c.mp3", "d.mkv"} {
		if !IsWorkspaceMedia(name) {
			t.Errorf("Expected %s to be workspace media", name)
		}
	}
	if IsWorkspaceMedia("notes.txt") {
		t.Error("Expected notes.txt not to be workspace media")
	}
}
