// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-converter/internal/engine"
)

// ExecFunc handles one Exec call. It may read and write the fake's files
// through f and emit events through f.Emitter.
type ExecFunc func(ctx context.Context, f *Fake, args []string) (int, error)

// Fake is an in-memory engine.Engine. Its default Exec behaves like a tiny
// ffmpeg: an inspection command prints the configured report for the input
// and exits 1, a conversion copies the input to the output and exits 0.
type Fake struct {
	engine.Emitter

	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	ready   bool
	writes  map[string]int
	deletes map[string]int
	execs   [][]string

	// Reports maps an input path to the log lines printed when it is inspected.
	Reports map[string][]string
	// ExitCodes forces the exit status for conversions writing the given output path.
	ExitCodes map[string]int
	// InitErr is returned by every Initialize call when set.
	InitErr error
	// InitDelay stretches Initialize so concurrent callers overlap.
	InitDelay time.Duration
	// WriteErr is returned by WriteFile for matching paths.
	WriteErr map[string]error
	// DeleteErr is returned by DeleteFile and DeleteDir for matching paths.
	DeleteErr map[string]error
	// Handler replaces the default Exec behavior when set.
	Handler ExecFunc

	initCalls   atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// New returns an empty fake engine.
func New() *Fake {
	return &Fake{
		files:     make(map[string][]byte),
		dirs:      map[string]bool{"": true},
		writes:    make(map[string]int),
		deletes:   make(map[string]int),
		Reports:   make(map[string][]string),
		ExitCodes: make(map[string]int),
		WriteErr:  make(map[string]error),
		DeleteErr: make(map[string]error),
	}
}

func clean(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimPrefix(p, "/")
}

func (f *Fake) enter() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *Fake) checkReady() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return engine.ErrNotInitialized
	}
	return nil
}

// Initialize marks the engine ready.
func (f *Fake) Initialize(ctx context.Context) error {
	defer f.enter()()
	f.initCalls.Add(1)
	if f.InitDelay > 0 {
		select {
		case <-time.After(f.InitDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.InitErr != nil {
		return f.InitErr
	}
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
	return nil
}

// WriteFile stores data at p. The parent directory must exist.
func (f *Fake) WriteFile(_ context.Context, p string, data []byte) error {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return err
	}
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[p]++
	if err := f.WriteErr[p]; err != nil {
		return err
	}
	if !f.dirs[path.Dir("/" + p)[1:]] {
		return fmt.Errorf("write %s: %w", p, engine.ErrNotFound)
	}
	f.files[p] = append([]byte(nil), data...)
	return nil
}

// ReadFile returns a copy of the data at p.
func (f *Fake) ReadFile(_ context.Context, p string) ([]byte, error) {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return nil, err
	}
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, engine.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// DeleteFile removes the file at p.
func (f *Fake) DeleteFile(_ context.Context, p string) error {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return err
	}
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[p]++
	if err := f.DeleteErr[p]; err != nil {
		return err
	}
	if _, ok := f.files[p]; !ok {
		return fmt.Errorf("delete %s: %w", p, engine.ErrNotFound)
	}
	delete(f.files, p)
	return nil
}

// CreateDir creates a directory whose parent exists.
func (f *Fake) CreateDir(_ context.Context, p string) error {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return err
	}
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[p] {
		return fmt.Errorf("mkdir %s: already exists", p)
	}
	parent := path.Dir(p)
	if parent == "." {
		parent = ""
	}
	if !f.dirs[parent] {
		return fmt.Errorf("mkdir %s: %w", p, engine.ErrNotFound)
	}
	f.dirs[p] = true
	return nil
}

// DeleteDir removes an empty directory.
func (f *Fake) DeleteDir(_ context.Context, p string) error {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return err
	}
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[p]++
	if err := f.DeleteErr[p]; err != nil {
		return err
	}
	if !f.dirs[p] || p == "" {
		return fmt.Errorf("rmdir %s: %w", p, engine.ErrNotFound)
	}
	prefix := p + "/"
	for name := range f.files {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("rmdir %s: directory not empty", p)
		}
	}
	for name := range f.dirs {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("rmdir %s: directory not empty", p)
		}
	}
	delete(f.dirs, p)
	return nil
}

// ListDir lists the direct children of p sorted by name.
func (f *Fake) ListDir(_ context.Context, p string) ([]engine.DirEntry, error) {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return nil, err
	}
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[p] {
		return nil, fmt.Errorf("list %s: %w", p, engine.ErrNotFound)
	}
	prefix := ""
	if p != "" {
		prefix = p + "/"
	}
	entries := []engine.DirEntry{}
	for name, data := range f.files {
		if rest, ok := strings.CutPrefix(name, prefix); ok && !strings.Contains(rest, "/") {
			entries = append(entries, engine.DirEntry{Name: rest, Size: int64(len(data))})
		}
	}
	for name := range f.dirs {
		if name == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			entries = append(entries, engine.DirEntry{Name: rest, IsDir: true})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Exec runs the handler or the default ffmpeg emulation.
func (f *Fake) Exec(ctx context.Context, args []string) (int, error) {
	defer f.enter()()
	if err := f.checkReady(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.execs = append(f.execs, append([]string(nil), args...))
	handler := f.Handler
	f.mu.Unlock()

	if handler != nil {
		return handler(ctx, f, args)
	}
	return f.defaultExec(args)
}

func (f *Fake) defaultExec(args []string) (int, error) {
	input := ""
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			input = clean(args[i+1])
		}
	}

	output := ""
	if len(args) > 0 {
		last := clean(args[len(args)-1])
		if last != input && !strings.HasPrefix(args[len(args)-1], "-") && (len(args) < 2 || args[len(args)-2] != "-i") {
			output = last
		}
	}

	f.mu.Lock()
	report := f.Reports[input]
	data, haveInput := f.files[input]
	f.mu.Unlock()

	for _, line := range report {
		f.Log("info", line)
	}

	if output == "" {
		f.Log("info", "At least one output file must be specified")
		return 1, nil
	}
	if !haveInput {
		f.Log("error", input+": No such file or directory")
		return 1, nil
	}

	f.Progress(0.5, time.Second)

	f.mu.Lock()
	code, forced := f.ExitCodes[output]
	f.mu.Unlock()
	if forced && code != 0 {
		f.Log("error", fmt.Sprintf("Conversion failed with status %d", code))
		return code, nil
	}

	f.mu.Lock()
	f.files[output] = append([]byte("converted:"), data...)
	f.mu.Unlock()
	f.Progress(1, 2*time.Second)
	return 0, nil
}

// Put stores a file directly, creating parent directories, without counting
// it as a write.
func (f *Fake) Put(p string, data []byte) {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := path.Dir(p)
	for dir != "." && dir != "/" {
		f.dirs[dir] = true
		dir = path.Dir(dir)
	}
	f.files[p] = append([]byte(nil), data...)
}

// MarkReady initializes the fake without counting an Initialize call.
func (f *Fake) MarkReady() {
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
}

// Has reports whether a file exists at p.
func (f *Fake) Has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[clean(p)]
	return ok
}

// HasDir reports whether a directory exists at p.
func (f *Fake) HasDir(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[clean(p)]
}

// Files returns the sorted paths of every stored file.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for name := range f.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Writes returns how many times p was written.
func (f *Fake) Writes(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[clean(p)]
}

// TotalWrites returns the number of WriteFile calls.
func (f *Fake) TotalWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.writes {
		total += n
	}
	return total
}

// Deletes returns how many times p was deleted.
func (f *Fake) Deletes(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[clean(p)]
}

// Execs returns a copy of every argv passed to Exec.
func (f *Fake) Execs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.execs))
	copy(out, f.execs)
	return out
}

// InitCalls returns the number of Initialize calls.
func (f *Fake) InitCalls() int {
	return int(f.initCalls.Load())
}

// MaxConcurrent returns the highest number of overlapping engine calls seen.
func (f *Fake) MaxConcurrent() int {
	return int(f.maxInFlight.Load())
}
