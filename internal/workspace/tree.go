package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"media-converter/internal/archive"
	"media-converter/internal/engine"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/probe"
)

// Root is the engine directory the tree mirrors.
const Root = "workspace"

var (
	// ErrNotFound is returned for a path with no node.
	ErrNotFound = errors.New("workspace path not found")
	// ErrNotFile is returned when a file operation targets a directory.
	ErrNotFile = errors.New("not a file")
	// ErrNotArchive is returned when unzipping a non-zip file.
	ErrNotArchive = errors.New("not a zip archive")
)

// Kind distinguishes files from directories.
type Kind string

const (
	File      Kind = "file"
	Directory Kind = "directory"
)

type node struct {
	name         string
	kind         Kind
	originalName string
	data         []byte
	meta         *probe.Descriptor
	children     map[string]*node
}

func newDir(name string) *node {
	return &node{name: name, kind: Directory, children: make(map[string]*node)}
}

// Info is a read-only view of one node.
type Info struct {
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Kind         Kind              `json:"kind"`
	Size         int64             `json:"size"`
	SizeLabel    string            `json:"sizeLabel,omitempty"`
	OriginalName string            `json:"originalName,omitempty"`
	Archive      bool              `json:"archive,omitempty"`
	Meta         *probe.Descriptor `json:"meta,omitempty"`
}

// EngineStarter initializes the engine before first use.
type EngineStarter func(ctx context.Context) error

// Reconciler keeps an in-memory tree in step with the engine's workspace
// directory. It is the single writer of both.
type Reconciler struct {
	engine engine.Engine
	prober *probe.Prober
	start  EngineStarter
	codec  archive.Codec

	mu   sync.Mutex
	root *node
}

// New returns an empty reconciler. start may be nil when the engine is
// already initialized.
func New(eng engine.Engine, prober *probe.Prober, start EngineStarter) *Reconciler {
	return &Reconciler{
		engine: eng,
		prober: prober,
		start:  start,
		codec:  archive.ZipCodec{},
		root:   newDir(""),
	}
}

// SplitPath splits a slash or backslash separated path into non-empty
// segments.
func SplitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
}

// NormalizeRelative resolves "." and ".." segments without ever climbing
// above the workspace root.
func NormalizeRelative(p string) string {
	var stack []string
	for _, part := range SplitPath(p) {
		switch part {
		case ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, "/")
}

func enginePath(segments []string) string {
	if len(segments) == 0 {
		return Root
	}
	return Root + "/" + strings.Join(segments, "/")
}

func (r *Reconciler) ready(ctx context.Context) error {
	if r.start != nil {
		if err := r.start(ctx); err != nil {
			return fmt.Errorf("engine unavailable: %w", err)
		}
	}
	if err := engine.EnsureDir(ctx, r.engine, Root); err != nil {
		return fmt.Errorf("failed to create %s: %w", Root, err)
	}
	return nil
}

func (r *Reconciler) lookup(segments []string) *node {
	n := r.root
	for _, seg := range segments {
		if n.kind != Directory {
			return nil
		}
		n = n.children[seg]
		if n == nil {
			return nil
		}
	}
	return n
}

func uniqueChild(dir *node, desired string) string {
	return mediatypes.UniqueName(func(candidate string) bool {
		_, taken := dir.children[candidate]
		return taken
	}, desired)
}

// ensureDirs walks segments from the root, creating directory nodes and
// renaming around files that occupy a segment name. It returns the final
// directory, the segments actually used and the number of leading
// segments that already existed.
func (r *Reconciler) ensureDirs(segments []string) (*node, []string, int) {
	n := r.root
	actual := make([]string, 0, len(segments))
	existing := 0
	for _, seg := range segments {
		child := n.children[seg]
		if child == nil || child.kind != Directory {
			name := seg
			if child != nil {
				name = uniqueChild(n, seg)
			}
			child = newDir(name)
			n.children[name] = child
		} else if existing == len(actual) {
			existing++
		}
		n = child
		actual = append(actual, child.name)
	}
	return n, actual, existing
}

// dropDirs removes the directories ensureDirs created below the first
// existing segments, in the tree and best effort in the engine.
func (r *Reconciler) dropDirs(ctx context.Context, segments []string, existing int) {
	if existing >= len(segments) {
		return
	}
	if parent := r.lookup(segments[:existing]); parent != nil {
		delete(parent.children, segments[existing])
	}
	for i := len(segments); i > existing; i-- {
		if err := r.engine.DeleteDir(ctx, enginePath(segments[:i])); err != nil {
			logging.Debug("workspace: rmdir %s: %v", enginePath(segments[:i]), err)
		}
	}
}

func (r *Reconciler) createEngineDirs(ctx context.Context, segments []string) {
	for i := range segments {
		// Existing directories make CreateDir fail; that is expected.
		_ = r.engine.CreateDir(ctx, enginePath(segments[:i+1]))
	}
}

func (r *Reconciler) analyze(ctx context.Context, n *node, segments []string) {
	ext := mediatypes.Extension(n.name)
	if !mediatypes.IsWorkspaceMedia(n.name) {
		n.meta = &probe.Descriptor{Container: ext}
		return
	}
	d, err := r.prober.ProbePath(ctx, enginePath(segments), ext)
	if err != nil {
		logging.Warn("workspace: probe of %s failed: %v", enginePath(segments), err)
	}
	n.meta = &d
}

// AddFile stores data at the relative path, creating parent directories
// and renaming on collision, writes it to the engine and probes it. It
// returns the path actually used.
func (r *Reconciler) AddFile(ctx context.Context, relPath string, data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ready(ctx); err != nil {
		return "", err
	}
	p, err := r.addFile(ctx, relPath, data)
	r.updateGauges()
	return p, err
}

func (r *Reconciler) addFile(ctx context.Context, relPath string, data []byte) (string, error) {
	segments := SplitPath(NormalizeRelative(relPath))
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}

	fileName := segments[len(segments)-1]
	parent, dirSegments, existing := r.ensureDirs(segments[:len(segments)-1])
	name := uniqueChild(parent, fileName)

	n := &node{name: name, kind: File, originalName: fileName, data: data}
	parent.children[name] = n

	full := append(append([]string(nil), dirSegments...), name)
	r.createEngineDirs(ctx, dirSegments)
	if err := r.engine.WriteFile(ctx, enginePath(full), data); err != nil {
		delete(parent.children, name)
		r.dropDirs(ctx, dirSegments, existing)
		return "", fmt.Errorf("failed to write %s: %w", enginePath(full), err)
	}
	r.analyze(ctx, n, full)
	logging.Debug("workspace: added %s (%s)", strings.Join(full, "/"), mediatypes.FormatBytes(int64(len(data))))
	return strings.Join(full, "/"), nil
}

// Delete removes a node. Engine-side removal is best effort; the tree
// always loses the node.
func (r *Reconciler) Delete(ctx context.Context, p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments := SplitPath(p)
	if len(segments) == 0 {
		return fmt.Errorf("%w: refusing to delete the workspace root", ErrNotFound)
	}
	parent := r.lookup(segments[:len(segments)-1])
	target := r.lookup(segments)
	if parent == nil || target == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	delete(parent.children, target.name)
	r.updateGauges()

	if err := r.ready(ctx); err != nil {
		logging.Warn("workspace: skipping engine cleanup of %s: %v", p, err)
		return nil
	}
	full := enginePath(segments)
	if target.kind == Directory {
		r.removeContents(ctx, full)
		if err := r.engine.DeleteDir(ctx, full); err != nil {
			logging.Debug("workspace: rmdir %s: %v", full, err)
		}
		return nil
	}
	if err := r.engine.DeleteFile(ctx, full); err != nil {
		logging.Debug("workspace: delete %s: %v", full, err)
	}
	return nil
}

func (r *Reconciler) removeContents(ctx context.Context, dir string) {
	entries, err := r.engine.ListDir(ctx, dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		child := dir + "/" + e.Name
		if e.IsDir {
			r.removeContents(ctx, child)
			if err := r.engine.DeleteDir(ctx, child); err != nil {
				logging.Debug("workspace: rmdir %s: %v", child, err)
			}
			continue
		}
		if err := r.engine.DeleteFile(ctx, child); err != nil {
			logging.Debug("workspace: delete %s: %v", child, err)
		}
	}
}

// UnzipInPlace expands a zip node next to itself and returns the paths of
// the added files.
func (r *Reconciler) UnzipInPlace(ctx context.Context, p string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments := SplitPath(p)
	n := r.lookup(segments)
	switch {
	case n == nil || len(segments) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	case n.kind != File:
		return nil, fmt.Errorf("%w: %s", ErrNotFile, p)
	case !mediatypes.IsArchive(n.name):
		return nil, fmt.Errorf("%w: %s", ErrNotArchive, p)
	}

	files, err := r.codec.Decompress(n.data)
	if err != nil {
		return nil, err
	}
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		if !strings.HasSuffix(name, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	base := strings.Join(segments[:len(segments)-1], "/")
	var added []string
	for _, name := range names {
		if len(SplitPath(name)) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.updateGauges()
			return added, err
		}
		got, err := r.addFile(ctx, base+"/"+name, files[name])
		if err != nil {
			r.updateGauges()
			return added, err
		}
		added = append(added, got)
	}
	r.updateGauges()
	logging.Info("workspace: extracted %d files from %s", len(added), p)
	return added, nil
}

// Rebuild discards the tree and reconstructs it from the engine's
// workspace directory, re-reading and re-probing every file.
func (r *Reconciler) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuild(ctx)
}

func (r *Reconciler) rebuild(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	root := newDir("")
	var walk func(segments []string, parent *node) error
	walk = func(segments []string, parent *node) error {
		entries, err := r.engine.ListDir(ctx, enginePath(segments))
		if err != nil {
			return nil
		}
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			child := append(append([]string(nil), segments...), e.Name)
			if e.IsDir {
				dir := newDir(e.Name)
				parent.children[e.Name] = dir
				if err := walk(child, dir); err != nil {
					return err
				}
				continue
			}
			data, err := r.engine.ReadFile(ctx, enginePath(child))
			if err != nil {
				logging.Warn("workspace: failed to read %s: %v", enginePath(child), err)
				continue
			}
			n := &node{name: e.Name, kind: File, originalName: e.Name, data: data}
			parent.children[e.Name] = n
			r.analyze(ctx, n, child)
		}
		return nil
	}

	if err := walk(nil, root); err != nil {
		return err
	}
	r.root = root
	r.updateGauges()
	return nil
}

func (r *Reconciler) info(n *node, p string) Info {
	in := Info{Name: n.name, Path: p, Kind: n.kind}
	if n.kind == File {
		in.Size = int64(len(n.data))
		in.SizeLabel = mediatypes.FormatBytes(in.Size)
		in.OriginalName = n.originalName
		in.Archive = mediatypes.IsArchive(n.name)
		if n.meta != nil {
			m := *n.meta
			in.Meta = &m
		}
	}
	return in
}

// Lookup returns the node at p.
func (r *Reconciler) Lookup(p string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments := SplitPath(p)
	n := r.lookup(segments)
	if n == nil {
		return Info{}, false
	}
	return r.info(n, strings.Join(segments, "/")), true
}

// List returns the children of dir, directories first, each group in name
// order.
func (r *Reconciler) List(dir string) ([]Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	segments := SplitPath(dir)
	n := r.lookup(segments)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	if n.kind != Directory {
		return nil, fmt.Errorf("%w: %s is a file", ErrNotFound, dir)
	}

	out := make([]Info, 0, len(n.children))
	for _, child := range n.children {
		out = append(out, r.info(child, strings.Join(append(append([]string(nil), segments...), child.name), "/")))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == Directory
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Read returns the bytes of the file at p.
func (r *Reconciler) Read(p string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.lookup(SplitPath(p))
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if n.kind != File {
		return nil, fmt.Errorf("%w: %s", ErrNotFile, p)
	}
	return n.data, nil
}

// Counts returns the number of files and directories in the tree.
func (r *Reconciler) Counts() (files, dirs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts()
}

func (r *Reconciler) counts() (files, dirs int) {
	var count func(n *node)
	count = func(n *node) {
		for _, c := range n.children {
			if c.kind == Directory {
				dirs++
				count(c)
			} else {
				files++
			}
		}
	}
	count(r.root)
	return files, dirs
}

func (r *Reconciler) updateGauges() {
	files, dirs := r.counts()
	metrics.WorkspaceNodes.WithLabelValues(string(File)).Set(float64(files))
	metrics.WorkspaceNodes.WithLabelValues(string(Directory)).Set(float64(dirs))
}
