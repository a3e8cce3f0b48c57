package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"media-converter/internal/engine"
	"media-converter/internal/mediatypes"
	"media-converter/internal/probe"
	"media-converter/internal/startup"
)

var probeFFmpeg string

var probeCmd = &cobra.Command{
	Use:   "probe [flags] FILE...",
	Short: "Print stream information for media files",
	Long:  "Probe copies each file into a scratch engine sandbox, inspects it with ffmpeg and prints the parsed descriptors as JSON.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.Context(), cmd.OutOrStdout(), probeFFmpeg, args)
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeFFmpeg, "ffmpeg", startup.DefaultConfig().FFmpegPath, "ffmpeg binary")
}

type probeResult struct {
	File     string            `json:"file"`
	Analysis *probe.Descriptor `json:"analysis,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func runProbe(ctx context.Context, out io.Writer, ffmpeg string, paths []string) error {
	dir, err := os.MkdirTemp("", "media-converter-probe-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	eng, err := newTranscoder(ffmpeg, dir)
	if err != nil {
		return err
	}
	if err := eng.Initialize(ctx); err != nil {
		return err
	}

	logs := engine.NewLogBuffer(engine.DefaultLogLines)
	detach := logs.Attach(eng)
	defer detach()
	prober := probe.NewProber(eng, logs)

	results := make([]probeResult, 0, len(paths))
	for i, p := range paths {
		results = append(results, probeFile(ctx, eng, prober, p, fmt.Sprintf("input-%d%s", i, filepath.Ext(p))))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func probeFile(ctx context.Context, eng engine.Engine, prober *probe.Prober, hostPath, staged string) probeResult {
	res := probeResult{File: hostPath}
	data, err := os.ReadFile(hostPath)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if err := eng.WriteFile(ctx, staged, data); err != nil {
		res.Error = err.Error()
		return res
	}
	defer func() { _ = eng.DeleteFile(ctx, staged) }()

	d, err := prober.ProbePath(ctx, staged, mediatypes.Extension(hostPath))
	if err != nil {
		res.Error = err.Error()
	}
	res.Analysis = &d
	return res
}
