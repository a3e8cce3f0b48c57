package main

import (
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/session"
)

// setCounter is the part of session.Session the adapter reads.
type setCounter interface {
	Stats() map[mediatypes.MediaType]session.SetStats
}

// treeCounter is the part of workspace.Reconciler the adapter reads.
type treeCounter interface {
	Counts() (files, dirs int)
}

// statsAdapter feeds session and workspace counts to the metrics collector.
type statsAdapter struct {
	session   setCounter
	workspace treeCounter
}

// GetStats implements metrics.StatsProvider
func (a *statsAdapter) GetStats() metrics.Stats {
	sets := a.session.Stats()
	files, dirs := a.workspace.Counts()
	return metrics.Stats{
		AudioEntries:   sets[mediatypes.Audio].Entries,
		VideoEntries:   sets[mediatypes.Video].Entries,
		AudioStaged:    sets[mediatypes.Audio].Staged,
		VideoStaged:    sets[mediatypes.Video].Staged,
		WorkspaceFiles: files,
		WorkspaceDirs:  dirs,
	}
}
