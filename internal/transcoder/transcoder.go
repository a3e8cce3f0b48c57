package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
)

// ErrUnavailable is returned by Initialize when the ffmpeg binary cannot run.
var ErrUnavailable = errors.New("ffmpeg unavailable")

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+:\d{2}:\d{2}(?:\.\d+)?)`)
	timePattern     = regexp.MustCompile(`time=\s*(\d+:\d{2}:\d{2}(?:\.\d+)?)`)
)

// Transcoder is an engine.Engine backed by a local ffmpeg binary whose
// private filesystem is a sandbox directory. Every operation holds the
// same lock, so at most one engine call is in flight.
type Transcoder struct {
	engine.Emitter

	binary  string
	sandbox *filesystem.Sandbox

	mu    sync.Mutex
	ready bool

	processMu sync.Mutex
	current   *exec.Cmd
}

// New creates a Transcoder running binary inside sandbox.
func New(binary string, sandbox *filesystem.Sandbox) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{
		binary:  binary,
		sandbox: sandbox,
	}
}

// IsReady reports whether Initialize has succeeded.
func (t *Transcoder) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// Initialize verifies the ffmpeg binary and clears the sandbox. Calls after
// the first success are no-ops.
func (t *Transcoder) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ready {
		return nil
	}

	return t.instrument("initialize", func() error {
		path, err := exec.LookPath(t.binary)
		if err != nil {
			return fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, t.binary)
		}
		logging.Debug("  FFmpeg path: %s", path)

		versionCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		output, err := exec.CommandContext(versionCtx, path, "-hide_banner", "-version").Output()
		if err != nil {
			return fmt.Errorf("%w: failed to get version: %v", ErrUnavailable, err)
		}
		if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
			logging.Info("Engine ready: %s", strings.TrimSpace(line))
		}

		if err := t.sandbox.Reset(); err != nil {
			return fmt.Errorf("failed to reset sandbox: %w", err)
		}

		t.binary = path
		t.ready = true
		metrics.EngineReady.Set(1)
		return nil
	})
}

// instrument records metrics for one engine operation.
func (t *Transcoder) instrument(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.EngineCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EngineCallsTotal.WithLabelValues(operation, status).Inc()
	return err
}

// begin acquires the engine lock and verifies readiness. The returned
// function releases the lock.
func (t *Transcoder) begin() (func(), error) {
	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return nil, engine.ErrNotInitialized
	}
	return t.mu.Unlock, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", engine.ErrNotFound, err)
	}
	return err
}

// WriteFile writes data into the sandbox.
func (t *Transcoder) WriteFile(_ context.Context, path string, data []byte) error {
	release, err := t.begin()
	if err != nil {
		return err
	}
	defer release()

	return t.instrument("write", func() error {
		return mapNotFound(t.sandbox.WriteFile(path, data))
	})
}

// ReadFile reads a file from the sandbox.
func (t *Transcoder) ReadFile(_ context.Context, path string) ([]byte, error) {
	release, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	var data []byte
	err = t.instrument("read", func() error {
		var readErr error
		data, readErr = t.sandbox.ReadFile(path)
		return mapNotFound(readErr)
	})
	return data, err
}

// DeleteFile removes a file from the sandbox.
func (t *Transcoder) DeleteFile(_ context.Context, path string) error {
	release, err := t.begin()
	if err != nil {
		return err
	}
	defer release()

	return t.instrument("delete", func() error {
		return mapNotFound(t.sandbox.Remove(path))
	})
}

// CreateDir creates one directory in the sandbox.
func (t *Transcoder) CreateDir(_ context.Context, path string) error {
	release, err := t.begin()
	if err != nil {
		return err
	}
	defer release()

	return t.instrument("mkdir", func() error {
		return mapNotFound(t.sandbox.Mkdir(path))
	})
}

// DeleteDir removes an empty directory from the sandbox.
func (t *Transcoder) DeleteDir(_ context.Context, path string) error {
	release, err := t.begin()
	if err != nil {
		return err
	}
	defer release()

	return t.instrument("rmdir", func() error {
		return mapNotFound(t.sandbox.Remove(path))
	})
}

// ListDir lists a sandbox directory.
func (t *Transcoder) ListDir(_ context.Context, path string) ([]engine.DirEntry, error) {
	release, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []engine.DirEntry
	err = t.instrument("list", func() error {
		listed, listErr := t.sandbox.ReadDir(path)
		if listErr != nil {
			return mapNotFound(listErr)
		}
		entries = make([]engine.DirEntry, 0, len(listed))
		for _, e := range listed {
			entries = append(entries, engine.DirEntry{Name: e.Name, IsDir: e.IsDir, Size: e.Size})
		}
		return nil
	})
	return entries, err
}

// checkArgs rejects arguments that would reach outside the sandbox.
func (t *Transcoder) checkArgs(args []string) error {
	root := t.sandbox.Root()
	for _, arg := range args {
		if filepath.IsAbs(arg) {
			if !t.sandbox.Contains(arg) {
				return fmt.Errorf("%w: %q", filesystem.ErrPathEscape, arg)
			}
			continue
		}
		if strings.Contains(arg, "..") && !t.sandbox.Contains(filepath.Join(root, arg)) {
			return fmt.Errorf("%w: %q", filesystem.ErrPathEscape, arg)
		}
	}
	return nil
}

// Exec runs ffmpeg with args inside the sandbox, streaming every output
// line as a log event and time= updates as progress events.
func (t *Transcoder) Exec(ctx context.Context, args []string) (int, error) {
	release, err := t.begin()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := t.checkArgs(args); err != nil {
		return 0, err
	}

	start := time.Now()
	code, err := t.run(ctx, args)
	metrics.EngineCallDuration.WithLabelValues("exec").Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EngineCallsTotal.WithLabelValues("exec", status).Inc()

	switch {
	case err != nil:
	case code == 0:
		metrics.EngineExitCodes.WithLabelValues("success").Inc()
	case code == engine.ExitAborted:
		metrics.EngineExitCodes.WithLabelValues("aborted").Inc()
	default:
		metrics.EngineExitCodes.WithLabelValues("failure").Inc()
	}

	return code, err
}

func (t *Transcoder) run(ctx context.Context, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, t.binary, append([]string{"-nostdin"}, args...)...)
	cmd.Dir = t.sandbox.Root()

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	t.processMu.Lock()
	t.current = cmd
	t.processMu.Unlock()

	defer func() {
		t.processMu.Lock()
		t.current = nil
		t.processMu.Unlock()
	}()

	logging.Debug("Engine exec: %s %s", t.binary, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return 0, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.pump(pr, time.Now())
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	<-done

	if waitErr == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, fmt.Errorf("ffmpeg wait failed: %w", waitErr)
	}

	code := exitErr.ExitCode()
	if code < 0 {
		code = engine.ExitAborted
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return code, ctxErr
	}
	return code, nil
}

// pump reads engine output until EOF and emits events.
func (t *Transcoder) pump(r io.Reader, start time.Time) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLines)

	var total float64
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " ")
		if line == "" {
			continue
		}
		t.Log("info", line)

		if total == 0 {
			if m := durationPattern.FindStringSubmatch(line); m != nil {
				total, _ = mediatypes.ParseClock(m[1])
			}
		}
		if total > 0 {
			if m := timePattern.FindStringSubmatch(line); m != nil {
				if current, ok := mediatypes.ParseClock(m[1]); ok {
					t.Progress(current/total, time.Since(start))
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Warn("Engine output read error: %v", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

// scanLines splits on either \n or \r so ffmpeg's in-place status updates
// become separate lines.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Cleanup kills the running ffmpeg process, if any.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	if t.current != nil && t.current.Process != nil {
		logging.Info("Killing running engine process")
		if err := t.current.Process.Kill(); err != nil {
			logging.Warn("failed to kill engine process: %v", err)
		}
	}
}
