package transcoder

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
)

const fakeFFmpeg = `#!/bin/sh
for a in "$@"; do
  case "$a" in
    -version) echo "ffmpeg version 6.1-test"; exit 0 ;;
  esac
done
for last in "$@"; do :; done
echo "Input #0, wav, from 'in.wav':" >&2
echo "  Duration: 00:00:10.00, start: 0.000000, bitrate: 128 kb/s" >&2
printf "size=1kB time=00:00:05.00 bitrate=1\rsize=2kB time=00:00:10.00 bitrate=1\n" >&2
case "$last" in
  fail.out) exit 3 ;;
  kill.out) kill -9 $$ ;;
  *.out) echo converted > "$last" ;;
esac
exit 0
`

func newTestTranscoder(t *testing.T) (*Transcoder, *filesystem.Sandbox) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine requires a POSIX shell")
	}

	binDir := t.TempDir()
	bin := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(bin, []byte(fakeFFmpeg), 0o755); err != nil {
		t.Fatalf("failed to write fake ffmpeg: %v", err)
	}

	sandbox, err := filesystem.NewSandbox(t.TempDir(), filesystem.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	return New(bin, sandbox), sandbox
}

func TestNew(t *testing.T) {
	trans := New("", nil)
	if trans.binary != "ffmpeg" {
		t.Errorf("Expected default binary ffmpeg, got %s", trans.binary)
	}
	if trans.IsReady() {
		t.Error("Expected new transcoder not to be ready")
	}
}

func TestOperationsRequireInitialize(t *testing.T) {
	trans, _ := newTestTranscoder(t)
	ctx := context.Background()

	if err := trans.WriteFile(ctx, "a.wav", nil); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized from WriteFile, got %v", err)
	}
	if _, err := trans.Exec(ctx, []string{"-version"}); !errors.Is(err, engine.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized from Exec, got %v", err)
	}
}

func TestInitializeMissingBinary(t *testing.T) {
	sandbox, err := filesystem.NewSandbox(t.TempDir(), filesystem.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	trans := New(filepath.Join(t.TempDir(), "no-such-ffmpeg"), sandbox)

	if err := trans.Initialize(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if trans.IsReady() {
		t.Error("Expected transcoder not to be ready after failure")
	}
}

func TestInitializeResetsSandbox(t *testing.T) {
	trans, sandbox := newTestTranscoder(t)
	if err := sandbox.WriteFile("stale.wav", []byte("old")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := trans.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := sandbox.ReadFile("stale.wav"); err == nil {
		t.Error("Expected stale file to be removed on initialize")
	}

	if err := sandbox.WriteFile("kept.wav", []byte("new")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := trans.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if _, err := sandbox.ReadFile("kept.wav"); err != nil {
		t.Error("Expected second Initialize to be a no-op")
	}
}

func TestFileOperations(t *testing.T) {
	trans, _ := newTestTranscoder(t)
	ctx := context.Background()
	if err := trans.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if err := trans.CreateDir(ctx, "workspace"); err != nil {
		t.Fatalf("CreateDir failed: %v", err)
	}
	if err := trans.WriteFile(ctx, "workspace/a.wav", []byte("abc")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := trans.ListDir(ctx, "workspace")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if diff := cmp.Diff([]engine.DirEntry{{Name: "a.wav", Size: 3}}, entries); diff != "" {
		t.Errorf("ListDir mismatch (-want +got):\n%s", diff)
	}

	data, err := trans.ReadFile(ctx, "workspace/a.wav")
	if err != nil || string(data) != "abc" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}

	if err := trans.DeleteDir(ctx, "workspace"); err == nil {
		t.Error("Expected DeleteDir to fail on a non-empty directory")
	}
	if err := trans.DeleteFile(ctx, "workspace/a.wav"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if err := trans.DeleteDir(ctx, "workspace"); err != nil {
		t.Fatalf("DeleteDir failed: %v", err)
	}

	if _, err := trans.ReadFile(ctx, "missing.wav"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

type recorder struct {
	mu       sync.Mutex
	lines    []string
	progress []float64
}

func (r *recorder) handle(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Kind {
	case engine.LogEvent:
		r.lines = append(r.lines, ev.Message)
	case engine.ProgressEvent:
		r.progress = append(r.progress, ev.Fraction)
	}
}

func TestExecEmitsLogsAndProgress(t *testing.T) {
	trans, sandbox := newTestTranscoder(t)
	ctx := context.Background()
	if err := trans.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rec := &recorder{}
	unsubscribe := trans.Subscribe(rec.handle)
	defer unsubscribe()

	code, err := trans.Exec(ctx, []string{"-y", "-i", "in.wav", "ok.out"})
	if err != nil || code != 0 {
		t.Fatalf("Exec = %d, %v; want 0, nil", code, err)
	}

	if diff := cmp.Diff([]float64{0.5, 1}, rec.progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if len(rec.lines) != 4 {
		t.Errorf("Expected 4 log lines, got %d: %v", len(rec.lines), rec.lines)
	}
	if !strings.HasPrefix(rec.lines[0], "Input #0, wav") {
		t.Errorf("Unexpected first line %q", rec.lines[0])
	}

	data, err := sandbox.ReadFile("ok.out")
	if err != nil || strings.TrimSpace(string(data)) != "converted" {
		t.Errorf("Expected output written in sandbox, got %q, %v", data, err)
	}
}

func TestExecExitCodes(t *testing.T) {
	trans, _ := newTestTranscoder(t)
	ctx := context.Background()
	if err := trans.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	tests := []struct {
		name   string
		output string
		want   int
	}{
		{"Success", "ok.out", 0},
		{"Failure", "fail.out", 3},
		{"Killed", "kill.out", engine.ExitAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := trans.Exec(ctx, []string{"-i", "in.wav", tt.output})
			if err != nil {
				t.Fatalf("Exec returned error: %v", err)
			}
			if code != tt.want {
				t.Errorf("Expected exit code %d, got %d", tt.want, code)
			}
		})
	}
}

func TestExecRejectsEscapes(t *testing.T) {
	trans, _ := newTestTranscoder(t)
	ctx := context.Background()
	if err := trans.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	for _, arg := range []string{"/etc/passwd", "../../secret.wav"} {
		if _, err := trans.Exec(ctx, []string{"-i", arg, "ok.out"}); !errors.Is(err, filesystem.ErrPathEscape) {
			t.Errorf("Expected ErrPathEscape for %q, got %v", arg, err)
		}
	}

	if _, err := trans.Exec(ctx, []string{"-i", "sub/../in.wav", "-vf", "scale=-2:720", "ok.out"}); err != nil {
		t.Errorf("Expected in-sandbox parent reference to be allowed, got %v", err)
	}
}

func TestScanLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("a\rb\nc\r\nd"))
	scanner.Split(scanLines)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}

	if diff := cmp.Diff([]string{"a", "b", "c", "", "d"}, got); diff != "" {
		t.Errorf("scanLines mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupWithoutProcess(t *testing.T) {
	trans := New("ffmpeg", nil)
	trans.Cleanup()
}
