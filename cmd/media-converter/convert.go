package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"media-converter/internal/capability"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/plan"
	"media-converter/internal/session"
	"media-converter/internal/startup"
)

// convertOptions holds the convert command's flags.
type convertOptions struct {
	mode         string
	preset       string
	container    string
	videoCodec   string
	audioCodec   string
	videoQuality string
	audioQuality string
	outDir       string
	ffmpeg       string
	bundleAt     int
	deviceClass  string
}

var convertOpts convertOptions

var convertCmd = &cobra.Command{
	Use:   "convert [flags] FILE...",
	Short: "Convert files without starting the server",
	Long: `Convert runs the same pipeline as the HTTP API against local files. Archives
are expanded, inputs of the other media type are skipped, and the results
(or a single zip bundle, past the bundle threshold) are written to --out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runConvert(ctx, cmd.OutOrStdout(), convertOpts, args)
	},
}

func init() {
	defaults := startup.DefaultConfig()
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.mode, "mode", "m", string(mediatypes.Audio), "media type to convert (audio or video)")
	f.StringVarP(&convertOpts.preset, "preset", "p", "", "preset name; overrides the container, codec and quality flags")
	f.StringVarP(&convertOpts.container, "container", "c", "", "output container (default depends on --mode)")
	f.StringVar(&convertOpts.videoCodec, "video-codec", "", "video codec (default depends on the container)")
	f.StringVar(&convertOpts.audioCodec, "audio-codec", "", "audio codec (default depends on the container)")
	f.StringVar(&convertOpts.videoQuality, "video-quality", string(plan.TierMedium), "video quality tier")
	f.StringVar(&convertOpts.audioQuality, "audio-quality", string(plan.TierMedium), "audio quality tier")
	f.StringVarP(&convertOpts.outDir, "out", "o", ".", "directory the results are written to")
	f.StringVar(&convertOpts.ffmpeg, "ffmpeg", defaults.FFmpegPath, "ffmpeg binary")
	f.IntVar(&convertOpts.bundleAt, "bundle-threshold", defaults.BundleThreshold, "write one zip when there are more results than this")
	f.StringVar(&convertOpts.deviceClass, "device-class", "", "capability profile override (desktop or mobile)")
}

// selection turns the flags into a conversion selection.
func (o convertOptions) selection() (plan.Selection, error) {
	if o.preset != "" {
		return plan.Selection{Preset: o.preset, PresetContainer: o.container}, nil
	}
	video, audio := plan.Tier(o.videoQuality), plan.Tier(o.audioQuality)
	for _, t := range []plan.Tier{video, audio} {
		if !t.Valid() || t == plan.TierCustom {
			return plan.Selection{}, fmt.Errorf("%w: unknown quality tier %q", plan.ErrInvalidSelection, t)
		}
	}
	return plan.Selection{
		Container:    o.container,
		VideoCodec:   o.videoCodec,
		AudioCodec:   o.audioCodec,
		VideoQuality: plan.QualityChoice{Tier: video},
		AudioQuality: plan.QualityChoice{Tier: audio},
	}, nil
}

// readUploads loads local files as uploads, sniffing their MIME type.
func readUploads(paths []string) ([]session.Upload, error) {
	uploads := make([]session.Upload, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, session.Upload{
			Name:       filepath.Base(p),
			MIME:       mimetype.Detect(data).String(),
			Data:       data,
			ModifiedAt: info.ModTime(),
		})
	}
	return uploads, nil
}

func runConvert(ctx context.Context, out io.Writer, opts convertOptions, paths []string) error {
	mode, ok := mediatypes.ParseMediaType(opts.mode)
	if !ok {
		return fmt.Errorf("%w: %q", session.ErrInvalidMode, opts.mode)
	}
	sel, err := opts.selection()
	if err != nil {
		return err
	}
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "media-converter-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	eng, err := newTranscoder(opts.ffmpeg, dir)
	if err != nil {
		return err
	}
	defer eng.Cleanup()

	sess := session.New(eng, session.Options{
		BundleThreshold: opts.bundleAt,
		Profile:         capability.Detect(ctx, opts.deviceClass),
	})
	defer sess.Close(context.Background())
	unsubscribe := sess.Subscribe(func(ev session.Event) {
		if ev.Kind == session.StatusEvent {
			logging.Printf("%s", ev.Status)
		}
	})
	defer unsubscribe()

	if err := sess.SwitchMode(ctx, mode); err != nil {
		return err
	}
	report, err := sess.Ingest(ctx, uploads)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued %d %s file(s)\n", report.Total, mode)

	outcome, err := sess.Convert(ctx, sel)
	if err != nil && len(outcome.Presentation.Artifacts) == 0 {
		return err
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	for _, a := range outcome.Presentation.Artifacts {
		target := filepath.Join(opts.outDir, a.Name)
		if err := renameio.WriteFile(target, a.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		fmt.Fprintf(out, "  %s (%s)\n", target, a.SizeLabel)
	}
	for _, f := range outcome.Summary.Failures {
		fmt.Fprintf(out, "  FAILED %s (exit code %d)\n", f.Name, f.ExitCode)
	}
	if msg := outcome.Presentation.Message; msg != "" {
		fmt.Fprintln(out, msg)
	}
	if outcome.Summary.Canceled {
		return context.Canceled
	}
	return err
}
