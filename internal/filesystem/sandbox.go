package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrPathEscape is returned when a relative path resolves outside the sandbox.
var ErrPathEscape = errors.New("path escapes sandbox")

// Entry describes one directory entry inside the sandbox.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Sandbox confines file operations to a single root directory. Paths are
// slash-separated and relative to the root, mirroring an engine-private
// filesystem.
type Sandbox struct {
	root  string
	retry RetryConfig
}

// NewSandbox creates the root directory if needed and returns a sandbox.
func NewSandbox(root string, retry RetryConfig) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}
	return &Sandbox{root: abs, retry: retry}, nil
}

// Root returns the absolute host path of the sandbox.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a sandbox-relative path onto the host filesystem.
func (s *Sandbox) Resolve(rel string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(rel, `\`, "/"))
	if strings.Contains(rel, "\x00") {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}
	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if full != s.root && !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}
	return full, nil
}

// Contains reports whether a host path lies inside the sandbox.
func (s *Sandbox) Contains(hostPath string) bool {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return false
	}
	return abs == s.root || strings.HasPrefix(abs, s.root+string(os.PathSeparator))
}

// WriteFile atomically replaces the file at rel with data.
func (s *Sandbox) WriteFile(rel string, data []byte) error {
	full, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	_, err = withRetry("write", rel, s.retry, func() (struct{}, error) {
		return struct{}{}, renameio.WriteFile(full, data, 0o644)
	})
	return err
}

// ReadFile returns the contents of rel.
func (s *Sandbox) ReadFile(rel string) ([]byte, error) {
	full, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return withRetry("read", rel, s.retry, func() ([]byte, error) {
		return os.ReadFile(full)
	})
}

// Remove deletes a file or an empty directory.
func (s *Sandbox) Remove(rel string) error {
	full, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if full == s.root {
		return fmt.Errorf("%w: refusing to remove sandbox root", ErrPathEscape)
	}
	_, err = withRetry("remove", rel, s.retry, func() (struct{}, error) {
		return struct{}{}, os.Remove(full)
	})
	return err
}

// Mkdir creates a single directory. The parent must exist.
func (s *Sandbox) Mkdir(rel string) error {
	full, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	_, err = withRetry("mkdir", rel, s.retry, func() (struct{}, error) {
		return struct{}{}, os.Mkdir(full, 0o755)
	})
	return err
}

// ReadDir lists rel sorted by name.
func (s *Sandbox) ReadDir(rel string) ([]Entry, error) {
	full, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	dirEntries, err := withRetry("readdir", rel, s.retry, func() ([]os.DirEntry, error) {
		return os.ReadDir(full)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		e := Entry{Name: de.Name(), IsDir: de.IsDir()}
		if !e.IsDir {
			if info, err := de.Info(); err == nil {
				e.Size = info.Size()
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat reports whether rel exists and whether it is a directory.
func (s *Sandbox) Stat(rel string) (fs.FileInfo, error) {
	full, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return withRetry("stat", rel, s.retry, func() (fs.FileInfo, error) {
		return os.Stat(full)
	})
}

// Reset removes everything inside the sandbox root, leaving the root itself.
func (s *Sandbox) Reset() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to read sandbox root: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("failed to clear %s: %w", e.Name(), err)
		}
	}
	return nil
}
