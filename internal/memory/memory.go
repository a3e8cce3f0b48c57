package memory

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// ErrStopped is returned by WaitIfPaused when the monitor stops while paused.
var ErrStopped = errors.New("memory monitor stopped")

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit below which a paused
	// monitor resumes (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which new jobs are held (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to check memory usage
	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for memory management
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and holds conversion jobs while usage is
// critical. Staged inputs and read-back outputs live on the Go heap, so
// starting another job near the limit risks an OOM kill.
type Monitor struct {
	config  Config
	limit   int64
	done    chan struct{}
	stopped sync.Once

	mu      sync.RWMutex
	current uint64
	paused  bool
	resumed chan struct{} // closed and replaced on each resume
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if limit = CurrentLimit(); limit > 0 {
			logging.Info("Memory monitor using GOMEMLIMIT: %s", humanize.IBytes(uint64(limit)))
		}
	}

	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:  config,
		limit:   limit,
		done:    make(chan struct{}),
		resumed: make(chan struct{}),
	}
}

// Start samples the heap every CheckInterval until Stop. It does nothing
// without a limit.
func (m *Monitor) Start() {
	if m.limit > 0 && m.config.CheckInterval > 0 {
		go m.sampleLoop()
	}
}

// Stop stops the memory monitor. Blocked waiters return ErrStopped.
func (m *Monitor) Stop() {
	m.stopped.Do(func() { close(m.done) })
}

func (m *Monitor) sampleLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			m.observe(stats.Alloc)
		case <-m.done:
			return
		}
	}
}

// observe records one heap sample and moves between running and paused.
func (m *Monitor) observe(alloc uint64) {
	if m.limit <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), holding conversion jobs", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming conversion jobs", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// WaitIfPaused blocks while memory usage is critical. It returns nil when
// it is safe to proceed, ctx.Err() on cancellation, or ErrStopped when the
// monitor stops first.
func (m *Monitor) WaitIfPaused(ctx context.Context) error {
	m.mu.RLock()
	paused, resumed := m.paused, m.resumed
	m.mu.RUnlock()
	if !paused {
		return nil
	}

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrStopped
	}
}

// IsPaused reports whether new jobs are being held.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// GetStats returns the last sampled heap size, the limit, and their ratio.
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current = math.MaxInt64
	if m.current <= math.MaxInt64 {
		current = int64(m.current)
	}
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return current, m.limit, usage
}
