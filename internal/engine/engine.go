package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ExitAborted is the exit status reported when the engine process was
// killed before finishing, which in practice means it ran out of memory.
const ExitAborted = -1

var (
	// ErrNotInitialized is returned by operations issued before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrNotFound is returned when a path does not exist in the engine.
	ErrNotFound = errors.New("engine path not found")
)

// DirEntry is one item returned by ListDir.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDirectory"`
	Size  int64  `json:"size"`
}

// EventKind distinguishes log lines from progress updates.
type EventKind int

const (
	// LogEvent carries one line of engine output.
	LogEvent EventKind = iota
	// ProgressEvent carries the fraction completed by the running Exec.
	ProgressEvent
)

// Event is emitted asynchronously while the engine works.
type Event struct {
	Kind     EventKind
	Level    string
	Message  string
	Fraction float64
	Elapsed  time.Duration
}

// Engine is the single-instance, non-reentrant transcoding backend. All
// paths are relative to the engine's private filesystem. Implementations
// serialize calls; callers must still avoid issuing overlapping operations
// when they rely on log correlation.
type Engine interface {
	Initialize(ctx context.Context) error
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	DeleteFile(ctx context.Context, path string) error
	CreateDir(ctx context.Context, path string) error
	DeleteDir(ctx context.Context, path string) error
	ListDir(ctx context.Context, path string) ([]DirEntry, error)

	// Exec runs the engine with argv and returns its exit status. A non-nil
	// error means the engine could not be run at all or ctx ended.
	Exec(ctx context.Context, args []string) (int, error)

	// Subscribe registers fn for log and progress events and returns a
	// function that removes the subscription.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Emitter fans events out to subscribers. Engine implementations embed it.
type Emitter struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// Subscribe registers fn and returns its removal function.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]func(Event))
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Emit delivers ev to every subscriber synchronously.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	subs := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Log emits a log event.
func (e *Emitter) Log(level, message string) {
	e.Emit(Event{Kind: LogEvent, Level: level, Message: message})
}

// Progress emits a progress event with the fraction clamped to [0, 1].
func (e *Emitter) Progress(fraction float64, elapsed time.Duration) {
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	e.Emit(Event{Kind: ProgressEvent, Fraction: fraction, Elapsed: elapsed})
}

// EnsureDir creates path on eng, tolerating an existing directory.
func EnsureDir(ctx context.Context, eng Engine, path string) error {
	err := eng.CreateDir(ctx, path)
	if err == nil {
		return nil
	}
	if _, listErr := eng.ListDir(ctx, path); listErr == nil {
		return nil
	}
	return err
}
