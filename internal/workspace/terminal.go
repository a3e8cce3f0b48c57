package workspace

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"media-converter/internal/engine"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// ErrEmptyCommand is returned when a command line has no engine arguments.
var ErrEmptyCommand = errors.New("no arguments to run")

var tokenPattern = regexp.MustCompile(`"([^"]*)"|'([^']*)'|\S+`)

// ParseCommandLine splits a command line on whitespace, keeping double- or
// single-quoted substrings together without their quotes.
func ParseCommandLine(line string) []string {
	var args []string
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(line, -1) {
		switch {
		case m[2] >= 0:
			args = append(args, line[m[2]:m[3]])
		case m[4] >= 0:
			args = append(args, line[m[4]:m[5]])
		default:
			args = append(args, line[m[0]:m[1]])
		}
	}
	return args
}

// TransformArgs rewrites "./" and ".\" relative arguments onto the
// workspace root. Other arguments pass through unchanged.
func TransformArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, "./") && !strings.HasPrefix(arg, `.\`) {
			out = append(out, arg)
			continue
		}
		if rel := NormalizeRelative(arg[2:]); rel != "" {
			out = append(out, Root+"/"+rel)
		} else {
			out = append(out, Root)
		}
	}
	return out
}

// Exec runs a free-form engine command line against the workspace. A
// leading "ffmpeg" is dropped. Every engine log line and status line goes
// to sink. The tree is rebuilt from the engine afterwards, whatever the
// exit code.
func (r *Reconciler) Exec(ctx context.Context, line string, sink func(string)) (int, error) {
	if sink == nil {
		sink = func(string) {}
	}

	args := ParseCommandLine(strings.TrimSpace(line))
	if len(args) > 0 && strings.EqualFold(args[0], "ffmpeg") {
		args = args[1:]
	}
	if len(args) == 0 {
		return 0, ErrEmptyCommand
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(ctx); err != nil {
		metrics.TerminalCommandsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	sink("$ " + strings.TrimSpace(line))
	unsubscribe := r.engine.Subscribe(func(ev engine.Event) {
		if ev.Kind == engine.LogEvent {
			sink(ev.Message)
		}
	})
	code, err := r.engine.Exec(ctx, TransformArgs(args))
	unsubscribe()

	if err != nil {
		metrics.TerminalCommandsTotal.WithLabelValues("error").Inc()
		sink(fmt.Sprintf("Execution failed: %v", err))
		return code, err
	}

	if code == 0 {
		metrics.TerminalCommandsTotal.WithLabelValues("success").Inc()
		sink("Command finished.")
	} else {
		metrics.TerminalCommandsTotal.WithLabelValues("failure").Inc()
		sink(fmt.Sprintf("Command failed, exit code %d", code))
	}

	if err := r.rebuild(ctx); err != nil {
		logging.Warn("workspace: rebuild after command failed: %v", err)
		return code, fmt.Errorf("failed to sync workspace: %w", err)
	}
	return code, nil
}
