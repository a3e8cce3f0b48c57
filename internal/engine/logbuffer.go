package engine

import (
	"strings"
	"sync"
)

// DefaultLogLines is the converter's log retention.
const DefaultLogLines = 5000

// WorkspaceLogLines is the workspace terminal's log retention.
const WorkspaceLogLines = 8000

// Mark identifies a position in a LogBuffer. Marks stay valid after older
// lines are evicted because they count lines ever appended, not indices.
type Mark uint64

// LogBuffer is a bounded ring of engine log lines. The oldest lines are
// dropped once capacity is exceeded.
type LogBuffer struct {
	mu       sync.Mutex
	lines    []string
	start    int
	capacity int
	total    uint64
}

// NewLogBuffer returns a buffer holding at most capacity lines.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogLines
	}
	return &LogBuffer{capacity: capacity}
}

// Attach subscribes the buffer to log events from eng.
func (b *LogBuffer) Attach(eng Engine) func() {
	return eng.Subscribe(func(ev Event) {
		if ev.Kind == LogEvent {
			b.Append(ev.Message)
		}
	})
}

// Append adds one line, evicting the oldest if full.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) < b.capacity {
		b.lines = append(b.lines, line)
	} else {
		b.lines[b.start] = line
		b.start = (b.start + 1) % b.capacity
	}
	b.total++
}

// Mark returns the current end of the buffer.
func (b *LogBuffer) Mark() Mark {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Mark(b.total)
}

// Since returns every retained line appended after m.
func (b *LogBuffer) Since(m Mark) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var newer uint64
	if b.total > uint64(m) {
		newer = b.total - uint64(m)
	}
	if newer > uint64(len(b.lines)) {
		newer = uint64(len(b.lines))
	}

	out := make([]string, 0, newer)
	first := len(b.lines) - int(newer)
	for i := first; i < len(b.lines); i++ {
		out = append(out, b.lines[(b.start+i)%len(b.lines)])
	}
	return out
}

// TextSince joins Since(m) with newlines.
func (b *LogBuffer) TextSince(m Mark) string {
	return strings.Join(b.Since(m), "\n")
}

// Lines returns a copy of every retained line in order.
func (b *LogBuffer) Lines() []string {
	return b.Since(0)
}

// Len returns the number of retained lines.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Clear drops every retained line. Existing marks remain valid.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
	b.start = 0
}
