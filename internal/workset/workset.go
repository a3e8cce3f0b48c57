package workset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-converter/internal/engine"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/probe"
)

// StagingDir is the engine directory holding staged inputs.
const StagingDir = "staging"

// ErrUnknownEntry is returned for an id that is not in the set.
var ErrUnknownEntry = errors.New("unknown entry")

// Input is a classified file ready to become an entry.
type Input struct {
	// Name is the virtual path, e.g. "album.zip/disc1/track.flac".
	Name       string
	Extension  string
	Data       []byte
	ModifiedAt time.Time
}

// Entry is a snapshot of one unit of work. The byte buffer is owned by the
// working set and must not be modified.
type Entry struct {
	ID          string               `json:"id"`
	Ordinal     int                  `json:"ordinal"`
	DisplayName string               `json:"displayName"`
	Type        mediatypes.MediaType `json:"type"`
	Extension   string               `json:"extension"`
	Size        int64                `json:"size"`
	UploadedAt  time.Time            `json:"uploadedAt"`
	CreatedAt   time.Time            `json:"createdAt"`
	Analysis    *probe.Descriptor    `json:"analysis,omitempty"`
	StagedPath  string               `json:"stagedPath,omitempty"`

	data []byte
}

// Bytes returns the entry's source bytes.
func (e Entry) Bytes() []byte {
	return e.data
}

// Label returns the short display label used in status lines.
func (e Entry) Label() string {
	return mediatypes.ShortenLabel(e.DisplayName)
}

// WorkingSet holds the entries of one processing mode and tracks which of
// them are staged in the engine filesystem. Audio and video each get their
// own instance; entries are never shared between them.
type WorkingSet struct {
	mode   mediatypes.MediaType
	engine engine.Engine

	mu       sync.Mutex
	entries  []*Entry
	byID     map[string]*Entry
	names    *mediatypes.NameSet
	seq      int
	staged   map[string]string
	dirReady bool
}

// New returns an empty working set for mode backed by eng.
func New(mode mediatypes.MediaType, eng engine.Engine) *WorkingSet {
	return &WorkingSet{
		mode:   mode,
		engine: eng,
		byID:   make(map[string]*Entry),
		names:  mediatypes.NewNameSet(),
		staged: make(map[string]string),
	}
}

// Mode returns the processing mode of the set.
func (w *WorkingSet) Mode() mediatypes.MediaType {
	return w.mode
}

// Add creates an entry from in. The display name is made unique within the
// set, case-insensitively, by a numeric suffix before the extension.
func (w *WorkingSet) Add(in Input) Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	now := time.Now()
	created := in.ModifiedAt
	if created.IsZero() {
		created = now
	}

	ext := in.Extension
	if ext == "" {
		ext = mediatypes.Extension(in.Name)
	}

	e := &Entry{
		ID:          uuid.NewString(),
		Ordinal:     w.seq,
		DisplayName: w.names.Claim(in.Name),
		Type:        w.mode,
		Extension:   ext,
		Size:        int64(len(in.Data)),
		UploadedAt:  now,
		CreatedAt:   created,
		data:        in.Data,
	}
	w.entries = append(w.entries, e)
	w.byID[e.ID] = e
	w.updateGauges()

	return w.snapshot(e)
}

func (w *WorkingSet) snapshot(e *Entry) Entry {
	out := *e
	out.StagedPath = w.staged[e.ID]
	if e.Analysis != nil {
		a := *e.Analysis
		out.Analysis = &a
	}
	return out
}

func (w *WorkingSet) updateGauges() {
	metrics.WorkingSetEntries.WithLabelValues(string(w.mode)).Set(float64(len(w.entries)))
	metrics.StagedPaths.WithLabelValues(string(w.mode)).Set(float64(len(w.staged)))
}

// Entries returns snapshots of every entry in insertion order.
func (w *WorkingSet) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Entry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, w.snapshot(e))
	}
	return out
}

// Get returns a snapshot of one entry.
func (w *WorkingSet) Get(id string) (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.byID[id]
	if !ok {
		return Entry{}, false
	}
	return w.snapshot(e), true
}

// Len returns the number of entries.
func (w *WorkingSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// SetAnalysis records the probe result for an entry.
func (w *WorkingSet) SetAnalysis(id string, d probe.Descriptor) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	e.Analysis = &d
	return nil
}

// stagingPath is deterministic per entry and never reused within a set,
// so a stale staged file cannot collide with a later entry.
func (w *WorkingSet) stagingPath(e *Entry) string {
	ext := e.Extension
	if ext == "" {
		ext = "dat"
	}
	name := mediatypes.SanitizeName(fmt.Sprintf("%s_input_%d.%s", w.mode, e.Ordinal, ext))
	return StagingDir + "/" + name
}

// Stage writes an entry's bytes into the engine filesystem, or returns the
// existing path when it is already staged.
func (w *WorkingSet) Stage(ctx context.Context, id string) (string, error) {
	w.mu.Lock()
	e, ok := w.byID[id]
	if !ok {
		w.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	if p, staged := w.staged[id]; staged {
		w.mu.Unlock()
		return p, nil
	}
	p := w.stagingPath(e)
	data := e.data
	needDir := !w.dirReady
	w.mu.Unlock()

	if needDir {
		if err := engine.EnsureDir(ctx, w.engine, StagingDir); err != nil {
			return "", fmt.Errorf("failed to create staging directory: %w", err)
		}
	}

	logging.Debug("Staging %s as %s", e.DisplayName, p)
	if err := w.engine.WriteFile(ctx, p, data); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", e.DisplayName, err)
	}

	w.mu.Lock()
	w.dirReady = true
	if _, still := w.byID[id]; !still {
		w.mu.Unlock()
		// Removed while the write was in flight.
		w.deleteQuietly(ctx, p)
		return "", fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	w.staged[id] = p
	w.updateGauges()
	w.mu.Unlock()
	return p, nil
}

func (w *WorkingSet) deleteQuietly(ctx context.Context, p string) {
	if err := w.engine.DeleteFile(ctx, p); err != nil && !errors.Is(err, engine.ErrNotFound) {
		logging.Warn("Failed to clean up staged file %s: %v", p, err)
	}
}

// StagedPaths returns every tracked staged path, sorted.
func (w *WorkingSet) StagedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.staged))
	for _, p := range w.staged {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Remove deletes one entry and its staged copy. Engine cleanup is best
// effort.
func (w *WorkingSet) Remove(ctx context.Context, id string) error {
	w.mu.Lock()
	e, ok := w.byID[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	delete(w.byID, id)
	for i, cur := range w.entries {
		if cur == e {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			break
		}
	}
	w.names.Remove(e.DisplayName)
	p, staged := w.staged[id]
	delete(w.staged, id)
	w.updateGauges()
	w.mu.Unlock()

	if staged {
		w.deleteQuietly(ctx, p)
	}
	return nil
}

// ReleaseStaged deletes every staged path from the engine and empties the
// tracking set. Entries are kept.
func (w *WorkingSet) ReleaseStaged(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.staged))
	for _, p := range w.staged {
		paths = append(paths, p)
	}
	w.staged = make(map[string]string)
	w.updateGauges()
	w.mu.Unlock()

	sort.Strings(paths)
	for _, p := range paths {
		w.deleteQuietly(ctx, p)
	}
	if len(paths) > 0 {
		logging.Debug("Released %d staged %s inputs", len(paths), w.mode)
	}
}

// Clear releases every staged path and drops every entry.
func (w *WorkingSet) Clear(ctx context.Context) {
	w.ReleaseStaged(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
	w.byID = make(map[string]*Entry)
	w.names = mediatypes.NewNameSet()
	w.updateGauges()
}
