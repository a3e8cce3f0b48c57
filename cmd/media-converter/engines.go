package main

import (
	"context"
	"fmt"

	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
	"media-converter/internal/plan"
	"media-converter/internal/probe"
	"media-converter/internal/startup"
	"media-converter/internal/transcoder"
	"media-converter/internal/workspace"
)

// newTranscoder returns an ffmpeg engine confined to dir.
func newTranscoder(binary, dir string) (*transcoder.Transcoder, error) {
	sandbox, err := filesystem.NewSandbox(dir, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("engine sandbox %s: %w", dir, err)
	}
	return transcoder.New(binary, sandbox), nil
}

// loadCatalog returns the built-in presets, merged with the presets file
// when one is configured.
func loadCatalog(presetsFile string) (*plan.Catalog, error) {
	catalog, err := plan.LoadCatalog(presetsFile)
	if err != nil {
		return nil, err
	}
	source := "built-in defaults"
	if presetsFile != "" {
		source = presetsFile
	}
	startup.LogPresetCatalog(source, len(catalog.List("")))
	return catalog, nil
}

// newWorkspace wires the workspace tree to its own engine. The engine is
// started on first use.
func newWorkspace(eng *transcoder.Transcoder) *workspace.Reconciler {
	logs := engine.NewLogBuffer(engine.WorkspaceLogLines)
	logs.Attach(eng)
	return workspace.New(eng, probe.NewProber(eng, logs), func(ctx context.Context) error {
		if eng.IsReady() {
			return nil
		}
		return eng.Initialize(ctx)
	})
}
