package metrics

import (
	"time"

	"media-converter/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	AudioEntries   int
	VideoEntries   int
	AudioStaged    int
	VideoStaged    int
	WorkspaceFiles int
	WorkspaceDirs  int
}

// Collector periodically copies session statistics into gauges
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	WorkingSetEntries.WithLabelValues("audio").Set(float64(stats.AudioEntries))
	WorkingSetEntries.WithLabelValues("video").Set(float64(stats.VideoEntries))
	StagedPaths.WithLabelValues("audio").Set(float64(stats.AudioStaged))
	StagedPaths.WithLabelValues("video").Set(float64(stats.VideoStaged))
	WorkspaceNodes.WithLabelValues("file").Set(float64(stats.WorkspaceFiles))
	WorkspaceNodes.WithLabelValues("directory").Set(float64(stats.WorkspaceDirs))

	logging.Debug("Metrics collected: audio=%d video=%d staged=%d/%d workspace=%d files",
		stats.AudioEntries, stats.VideoEntries, stats.AudioStaged, stats.VideoStaged, stats.WorkspaceFiles)
}
