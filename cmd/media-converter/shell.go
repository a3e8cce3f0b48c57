package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-converter/internal/startup"
	"media-converter/internal/workspace"
)

const shellPrompt = "workspace> "

const shellHelp = `Commands:
  ls [DIR]             list a workspace directory
  add FILE [DIR]       copy a local file into the workspace
  get PATH [DIR]       copy a workspace file to a local directory
  rm PATH              delete a workspace file or directory
  unzip PATH           expand a zip archive next to itself
  help                 show this text
  exit                 leave the shell
Anything else runs as an ffmpeg command line; "./" arguments refer to the
workspace root.`

var shellFFmpeg string

var shellCmd = &cobra.Command{
	Use:   "shell [flags] [FILE...]",
	Short: "Interactive ffmpeg workspace",
	Long: `Shell opens a scratch workspace backed by its own engine sandbox, loads the
given files into it and reads commands from standard input. Type "help" for
the command list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context(), shellFFmpeg, args)
	},
}

func init() {
	shellCmd.Flags().StringVar(&shellFFmpeg, "ffmpeg", startup.DefaultConfig().FFmpegPath, "ffmpeg binary")
}

// lineReader yields one command line per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct {
	scanner *bufio.Scanner
}

func (s scannerReader) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func runShell(ctx context.Context, ffmpeg string, files []string) error {
	dir, err := os.MkdirTemp("", "media-converter-workspace-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	eng, err := newTranscoder(ffmpeg, dir)
	if err != nil {
		return err
	}
	defer eng.Cleanup()
	ws := newWorkspace(eng)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		sh := &shell{ws: ws, out: os.Stdout}
		if err := sh.preload(ctx, files); err != nil {
			return err
		}
		return sh.run(ctx, scannerReader{bufio.NewScanner(os.Stdin)})
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, shellPrompt)
	if w, h, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, h)
	}

	sh := &shell{ws: ws, out: t}
	if err := sh.preload(ctx, files); err != nil {
		return err
	}
	return sh.run(ctx, t)
}

// shell executes workspace commands and writes their output to out.
type shell struct {
	ws  *workspace.Reconciler
	out io.Writer
}

func (s *shell) preload(ctx context.Context, files []string) error {
	for _, f := range files {
		if err := s.add(ctx, f, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *shell) run(ctx context.Context, in lineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := s.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// handle runs one line and reports whether the shell should exit.
func (s *shell) handle(ctx context.Context, line string) (bool, error) {
	args := workspace.ParseCommandLine(strings.TrimSpace(line))
	if len(args) == 0 {
		return false, nil
	}

	switch strings.ToLower(args[0]) {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return false, nil
	case "ls":
		return false, s.list(arg(args, 1))
	case "add":
		if len(args) < 2 {
			return false, errors.New("usage: add FILE [DIR]")
		}
		return false, s.add(ctx, args[1], arg(args, 2))
	case "get":
		if len(args) < 2 {
			return false, errors.New("usage: get PATH [DIR]")
		}
		return false, s.get(args[1], arg(args, 2))
	case "rm":
		if len(args) < 2 {
			return false, errors.New("usage: rm PATH")
		}
		return false, s.ws.Delete(ctx, args[1])
	case "unzip":
		if len(args) < 2 {
			return false, errors.New("usage: unzip PATH")
		}
		added, err := s.ws.UnzipInPlace(ctx, args[1])
		for _, p := range added {
			fmt.Fprintf(s.out, "  %s\n", p)
		}
		return false, err
	}

	_, err := s.ws.Exec(ctx, line, func(msg string) {
		fmt.Fprintln(s.out, msg)
	})
	return false, err
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func (s *shell) list(dir string) error {
	entries, err := s.ws.List(workspace.NormalizeRelative(dir))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Kind == workspace.Directory {
			fmt.Fprintf(s.out, "  %s/\n", e.Name)
			continue
		}
		fmt.Fprintf(s.out, "  %-40s %s\n", e.Name, e.SizeLabel)
	}
	return nil
}

func (s *shell) add(ctx context.Context, hostPath, dir string) error {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return err
	}
	target := path.Join(workspace.NormalizeRelative(dir), filepath.Base(hostPath))
	added, err := s.ws.AddFile(ctx, target, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  added %s\n", added)
	return nil
}

func (s *shell) get(p, hostDir string) error {
	data, err := s.ws.Read(workspace.NormalizeRelative(p))
	if err != nil {
		return err
	}
	if hostDir == "" {
		hostDir = "."
	}
	target := filepath.Join(hostDir, path.Base(p))
	if err := renameio.WriteFile(target, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  saved %s\n", target)
	return nil
}
