package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testLimit = 100 << 20

func newTestMonitor() *Monitor {
	return NewMonitor(Config{
		MemoryLimitBytes:  testLimit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
	})
}

func TestNewMonitor(t *testing.T) {
	monitor := newTestMonitor()
	if monitor.limit != testLimit {
		t.Errorf("Expected limit %d, got %d", testLimit, monitor.limit)
	}
	if monitor.IsPaused() {
		t.Error("Expected monitor to not be paused initially")
	}
}

func TestMonitorObserve(t *testing.T) {
	monitor := newTestMonitor()

	steps := []struct {
		name      string
		fraction  float64
		wantPause bool
	}{
		{"Below high water", 0.5, false},
		{"Critical", 0.9, true},
		{"Between marks stays paused", 0.8, true},
		{"Recovered", 0.6, false},
		{"Between marks stays running", 0.8, false},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			monitor.observe(uint64(step.fraction * testLimit))
			if monitor.IsPaused() != step.wantPause {
				t.Errorf("Expected paused=%v at %.0f%%", step.wantPause, step.fraction*100)
			}
		})
	}
}

func TestMonitorGetStats(t *testing.T) {
	monitor := newTestMonitor()
	monitor.observe(testLimit / 4)

	current, limit, usage := monitor.GetStats()
	if current != testLimit/4 {
		t.Errorf("Expected current %d, got %d", testLimit/4, current)
	}
	if limit != testLimit {
		t.Errorf("Expected limit %d, got %d", testLimit, limit)
	}
	if usage != 0.25 {
		t.Errorf("Expected usage 0.25, got %f", usage)
	}
}

func TestWaitIfPaused(t *testing.T) {
	t.Run("Returns immediately when running", func(t *testing.T) {
		monitor := newTestMonitor()
		if err := monitor.WaitIfPaused(context.Background()); err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	})

	t.Run("Releases on recovery", func(t *testing.T) {
		monitor := newTestMonitor()
		monitor.observe(testLimit)

		done := make(chan error, 1)
		go func() { done <- monitor.WaitIfPaused(context.Background()) }()

		select {
		case <-done:
			t.Fatal("Expected WaitIfPaused to block while paused")
		case <-time.After(20 * time.Millisecond):
		}

		monitor.observe(0)
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Expected nil after recovery, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("WaitIfPaused did not return after recovery")
		}
	})

	t.Run("Honors context", func(t *testing.T) {
		monitor := newTestMonitor()
		monitor.observe(testLimit)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := monitor.WaitIfPaused(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("Returns on stop", func(t *testing.T) {
		monitor := newTestMonitor()
		monitor.observe(testLimit)
		monitor.Stop()
		monitor.Stop()

		if err := monitor.WaitIfPaused(context.Background()); !errors.Is(err, ErrStopped) {
			t.Errorf("Expected ErrStopped, got %v", err)
		}
	})
}

func TestMonitorStartStop(_ *testing.T) {
	monitor := NewMonitor(Config{
		MemoryLimitBytes:  testLimit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	monitor.Start()
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
}
