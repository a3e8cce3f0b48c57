package mediatypes

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

const (
	maxLabelLength = 48
	labelCutoff    = 45
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// Extension returns the lowercase extension of the last path segment
// without the leading dot, or "" when there is none.
func Extension(name string) string {
	last := DisplayLabel(name)
	idx := strings.LastIndex(last, ".")
	if idx <= 0 || idx == len(last)-1 {
		return ""
	}
	return strings.ToLower(last[idx+1:])
}

// BaseName strips the extension from the last path segment of name and
// returns the full path without it.
func BaseName(name string) string {
	base, _ := splitExt(name)
	return base
}

// splitExt splits name into everything before the final extension dot and
// the extension including the dot. Dots in directory segments are ignored.
func splitExt(name string) (string, string) {
	slash := strings.LastIndexAny(name, `/\`)
	dot := strings.LastIndex(name, ".")
	if dot <= slash+1 || dot == len(name)-1 {
		return name, ""
	}
	return name[:dot], name[dot:]
}

// DisplayLabel returns the last segment of a slash or backslash separated path.
func DisplayLabel(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	if idx := strings.LastIndexAny(trimmed, `/\`); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// JoinLabel joins virtual path segments with forward slashes, normalizing
// backslashes and dropping empty segments.
func JoinLabel(parts ...string) string {
	var segments []string
	for _, part := range parts {
		for _, seg := range strings.Split(strings.ReplaceAll(part, `\`, "/"), "/") {
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	return strings.Join(segments, "/")
}

// ShortenLabel truncates long labels for status lines.
func ShortenLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= maxLabelLength {
		return label
	}
	return string(runes[:labelCutoff]) + "..."
}

// SanitizeName replaces every run of characters outside [A-Za-z0-9_.-]
// with a single underscore so the result is a safe engine path segment.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// NameSet tracks names case-insensitively using Unicode case folding.
// It is safe for concurrent use.
type NameSet struct {
	mu     sync.Mutex
	folder cases.Caser
	names  map[string]string
}

// NewNameSet returns a set seeded with the given names.
func NewNameSet(names ...string) *NameSet {
	s := &NameSet{folder: cases.Fold(), names: make(map[string]string)}
	for _, n := range names {
		s.names[s.key(n)] = n
	}
	return s
}

func (s *NameSet) key(name string) string {
	return s.folder.String(name)
}

// Contains reports whether a case-insensitive match for name is present.
func (s *NameSet) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[s.key(name)]
	return ok
}

// Remove forgets name.
func (s *NameSet) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, s.key(name))
}

// Len returns the number of names held.
func (s *NameSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// Claim reserves a unique variant of desired and returns it. If desired is
// free it is returned unchanged, otherwise "base (n).ext" with the smallest
// free n is used.
func (s *NameSet) Claim(desired string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := UniqueName(func(candidate string) bool {
		_, taken := s.names[s.key(candidate)]
		return taken
	}, desired)
	s.names[s.key(name)] = name
	return name
}

// UniqueName returns desired if taken reports it free, otherwise the first
// "base (n).ext" variant that is free.
func UniqueName(taken func(string) bool, desired string) string {
	if !taken(desired) {
		return desired
	}
	base, ext := splitExt(desired)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}
