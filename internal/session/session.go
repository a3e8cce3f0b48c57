package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-converter/internal/archive"
	"media-converter/internal/bundle"
	"media-converter/internal/capability"
	"media-converter/internal/engine"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/plan"
	"media-converter/internal/probe"
	"media-converter/internal/queue"
	"media-converter/internal/workset"
)

// analysisShare is the part of the progress bar analysis fills.
const analysisShare = 60

var (
	// ErrUnknownEntry is returned for an id that is not in the active set.
	ErrUnknownEntry = workset.ErrUnknownEntry
	// ErrNoEntries is returned when analysis or conversion has nothing to do.
	ErrNoEntries = errors.New("no media entries")
	// ErrInvalidMode is returned for a mode other than audio or video.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrNoResults is returned when a result download is requested before
	// any run produced output.
	ErrNoResults = errors.New("no results")
)

// Status lines published to subscribers.
const (
	StatusIdle          = "Waiting for files"
	StatusInitializing  = "Initializing engine..."
	StatusScanning      = "Scanning files..."
	StatusNoMedia       = "No usable audio or video files found"
	StatusAnalyzed      = "Analysis complete, adjust conversion settings"
	StatusAnalyzeFailed = "Analysis failed, please retry"
	StatusPreparing     = "Preparing conversion..."
	StatusConverted     = "Conversion complete, results ready for download"
	StatusNoOutput      = "No output files were produced"
	StatusConvertFailed = "Conversion failed, check the log"
	StatusCanceled      = "Conversion canceled"
)

// Upload is one user-supplied file.
type Upload struct {
	Name       string
	MIME       string
	Data       []byte
	ModifiedAt time.Time
}

// IngestReport summarizes an Ingest call.
type IngestReport struct {
	Added []workset.Entry `json:"added"`
	// Total is the size of the active set afterwards.
	Total int `json:"total"`
}

// Analysis is one probed entry.
type Analysis struct {
	Entry    workset.Entry    `json:"entry"`
	Analysis probe.Descriptor `json:"analysis"`
	Error    string           `json:"error,omitempty"`
}

// AnalysisReport summarizes an Analyze call.
type AnalysisReport struct {
	Entries []Analysis `json:"entries"`
	Audio   int        `json:"audio"`
	Video   int        `json:"video"`
	// VideoWithAudio reports whether any video entry carries an audio
	// stream, which decides whether audio pickers apply in video mode.
	VideoWithAudio bool `json:"videoWithAudio"`
}

// Outcome is the result of a Convert call.
type Outcome struct {
	Summary      queue.Summary       `json:"summary"`
	Presentation bundle.Presentation `json:"presentation"`
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Mode        mediatypes.MediaType `json:"mode"`
	State       queue.State          `json:"state"`
	Analyzing   bool                 `json:"analyzing"`
	EngineReady bool                 `json:"engineReady"`
	Status      string               `json:"status"`
	Progress    queue.Progress       `json:"progress"`
	Entries     int                  `json:"entries"`
	Results     int                  `json:"results"`
}

// Options configures a Session.
type Options struct {
	// BundleThreshold is the individual-download limit; see bundle.Packager.
	BundleThreshold int
	// MaxArchiveDepth bounds archive nesting during ingestion. Zero means
	// unbounded.
	MaxArchiveDepth int
	// MaxEntryBytes caps one decompressed archive entry. Zero means no cap.
	MaxEntryBytes int64
	// LogLines sizes the engine log buffer. Zero means
	// engine.DefaultLogLines.
	LogLines int
	// Gate pauses jobs while memory is short. May be nil.
	Gate queue.Gate
	// Catalog defaults to plan.DefaultCatalog.
	Catalog *plan.Catalog
	// Profile is the host capability profile.
	Profile capability.Profile
}

// Session ties the converter pipeline together for one engine.
type Session struct {
	engine   engine.Engine
	logs     *engine.LogBuffer
	activity *engine.LogBuffer
	driver   *queue.Driver
	prober   *probe.Prober
	resolver *plan.Resolver
	packager *bundle.Packager
	expander *archive.Expander
	sets     map[mediatypes.MediaType]*workset.WorkingSet
	detach   []func()

	mu           sync.Mutex
	mode         mediatypes.MediaType
	busy         bool
	analyzing    bool
	status       string
	analysisProg queue.Progress
	summary      *queue.Summary
	presentation bundle.Presentation

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// New returns a session in audio mode.
func New(eng engine.Engine, opts Options) *Session {
	lines := opts.LogLines
	if lines <= 0 {
		lines = engine.DefaultLogLines
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = plan.DefaultCatalog()
	}

	s := &Session{
		engine:   eng,
		logs:     engine.NewLogBuffer(lines),
		activity: engine.NewLogBuffer(lines),
		driver:   queue.NewDriver(eng, opts.Gate),
		resolver: plan.NewResolver(opts.Profile, catalog),
		packager: bundle.NewPackager(opts.BundleThreshold),
		expander: archive.NewExpander(),
		sets: map[mediatypes.MediaType]*workset.WorkingSet{
			mediatypes.Audio: workset.New(mediatypes.Audio, eng),
			mediatypes.Video: workset.New(mediatypes.Video, eng),
		},
		mode:   mediatypes.Audio,
		status: StatusIdle,
		subs:   make(map[int]func(Event)),
	}
	s.prober = probe.NewProber(eng, s.logs)
	s.expander.MaxDepth = opts.MaxArchiveDepth
	s.expander.Codec = archive.ZipCodec{MaxEntryBytes: opts.MaxEntryBytes}
	s.expander.Log = s.logf

	s.detach = append(s.detach, s.logs.Attach(eng), s.driver.Subscribe(s.forward))
	return s
}

// Close detaches the session from its engine and releases every staged
// input.
func (s *Session) Close(ctx context.Context) {
	for _, fn := range s.detach {
		fn()
	}
	for _, ws := range s.sets {
		ws.ReleaseStaged(ctx)
	}
}

// Driver exposes the conversion driver.
func (s *Session) Driver() *queue.Driver {
	return s.driver
}

// Mode returns the active processing mode.
func (s *Session) Mode() mediatypes.MediaType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) active() *workset.WorkingSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[s.mode]
}

// begin claims the session for analysis or conversion.
func (s *Session) begin(analyzing bool) (*workset.WorkingSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, queue.ErrBusy
	}
	s.busy = true
	s.analyzing = analyzing
	return s.sets[s.mode], nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.analyzing = false
	s.analysisProg = queue.Progress{}
	s.mu.Unlock()
}

// SwitchMode makes mode active. Every input staged for the departing mode
// is deleted from the engine; its entries stay. Switching is rejected while
// analysis or a conversion is in flight.
func (s *Session) SwitchMode(ctx context.Context, mode mediatypes.MediaType) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return queue.ErrBusy
	}
	if s.mode == mode {
		s.mu.Unlock()
		return nil
	}
	departing := s.sets[s.mode]
	s.mode = mode
	s.summary = nil
	s.presentation = bundle.Presentation{}
	s.mu.Unlock()

	departing.ReleaseStaged(ctx)
	logging.Info("Switched to %s mode", mode)
	s.publish(Event{Kind: ModeEvent, Mode: mode})
	s.setStatus(StatusIdle)
	return nil
}

// Ingest expands uploads into the active set. Archives are walked
// recursively; media of the other mode and non-media files are logged and
// skipped. When ctx ends, the entries added so far are kept and reported
// with the error.
func (s *Session) Ingest(ctx context.Context, uploads []Upload) (IngestReport, error) {
	ws := s.active()
	mode := ws.Mode()
	want := func(name, hint string) bool {
		return mediatypes.Matches(mode, name, hint)
	}

	s.setStatus(StatusScanning)
	report := IngestReport{Added: []workset.Entry{}}
	for _, up := range uploads {
		items, err := s.expander.Expand(ctx, archive.Source{Name: up.Name, MIME: up.MIME, Data: up.Data}, "", want)
		for _, item := range items {
			entry := ws.Add(workset.Input{
				Name:       item.Path,
				Extension:  item.Extension,
				Data:       item.Data,
				ModifiedAt: up.ModifiedAt,
			})
			source := "file"
			if mediatypes.IsArchive(up.Name) {
				source = "archive"
			}
			metrics.IngestedEntriesTotal.WithLabelValues(string(mode), source).Inc()
			report.Added = append(report.Added, entry)
		}
		if err != nil {
			report.Total = ws.Len()
			return report, err
		}
	}

	report.Total = ws.Len()
	if report.Total == 0 {
		s.setStatus(StatusNoMedia)
	} else {
		s.setStatus(fmt.Sprintf("%d %s files selected", report.Total, mode))
	}
	return report, nil
}

// Entries returns the active set in insertion order.
func (s *Session) Entries() []workset.Entry {
	return s.active().Entries()
}

// Entry returns one entry of the active set.
func (s *Session) Entry(id string) (workset.Entry, error) {
	e, ok := s.active().Get(id)
	if !ok {
		return workset.Entry{}, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	return e, nil
}

func (s *Session) idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return queue.ErrBusy
	}
	return nil
}

// Remove deletes one entry and its staged copy.
func (s *Session) Remove(ctx context.Context, id string) error {
	if err := s.idle(); err != nil {
		return err
	}
	return s.active().Remove(ctx, id)
}

// Clear empties the active set, deletes its staged inputs and drops the
// latest results.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.idle(); err != nil {
		return err
	}
	s.active().Clear(ctx)

	s.mu.Lock()
	s.summary = nil
	s.presentation = bundle.Presentation{}
	s.mu.Unlock()

	s.activity.Clear()
	s.setStatus(StatusIdle)
	return nil
}

// Analyze probes every entry of the active set in order, filling the first
// part of the progress bar. A probe failure is logged and leaves a partial
// descriptor; it never stops the pass.
func (s *Session) Analyze(ctx context.Context) (AnalysisReport, error) {
	ws, err := s.begin(true)
	if err != nil {
		return AnalysisReport{}, err
	}
	defer s.end()

	entries := ws.Entries()
	if len(entries) == 0 {
		s.setStatus(StatusNoMedia)
		return AnalysisReport{}, ErrNoEntries
	}

	s.setStatus(StatusInitializing)
	if err := s.driver.EnsureEngine(ctx); err != nil {
		s.logf("Error: %v", err)
		s.setStatus(StatusAnalyzeFailed)
		return AnalysisReport{}, fmt.Errorf("engine initialization failed: %w", err)
	}

	report := AnalysisReport{Entries: make([]Analysis, 0, len(entries))}
	start := time.Now()
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			s.setStatus(StatusAnalyzeFailed)
			return report, err
		}
		s.setStatus(fmt.Sprintf("Analyzing %d/%d: %s", i+1, len(entries), e.Label()))

		d, probeErr := s.prober.Probe(ctx, ws, probe.Target{ID: e.ID, Extension: e.Extension, Type: e.Type})
		item := Analysis{Entry: e, Analysis: d}
		if probeErr != nil {
			if errors.Is(probeErr, workset.ErrUnknownEntry) {
				continue
			}
			item.Error = probeErr.Error()
			s.logf("Analysis failed (%s): %v", e.DisplayName, probeErr)
		}
		if err := ws.SetAnalysis(e.ID, d); err == nil {
			item.Entry, _ = ws.Get(e.ID)
		}
		report.Entries = append(report.Entries, item)

		switch e.Type {
		case mediatypes.Audio:
			report.Audio++
		case mediatypes.Video:
			report.Video++
			if d.HasAudio {
				report.VideoWithAudio = true
			}
		}
		s.setAnalysisProgress(queue.Progress{
			Job:     i + 1,
			Total:   len(entries),
			Percent: float64(i+1) / float64(len(entries)) * analysisShare,
			Elapsed: time.Since(start),
			Label:   e.Label(),
		})
	}

	s.setStatus(StatusAnalyzed)
	return report, nil
}

// Convert resolves a plan for every entry of the active set and runs them.
// Entries that were never analyzed are probed first. The results replace
// the previous run's and are packaged for download.
func (s *Session) Convert(ctx context.Context, sel plan.Selection) (Outcome, error) {
	ws, err := s.begin(false)
	if err != nil {
		return Outcome{}, err
	}
	defer s.end()

	entries := ws.Entries()
	if len(entries) == 0 {
		s.setStatus(StatusNoMedia)
		return Outcome{}, ErrNoEntries
	}

	s.mu.Lock()
	s.summary = nil
	s.presentation = bundle.Presentation{}
	s.mu.Unlock()
	s.setStatus(StatusPreparing)

	if err := s.driver.EnsureEngine(ctx); err != nil {
		s.setStatus(StatusConvertFailed)
		return Outcome{}, fmt.Errorf("engine initialization failed: %w", err)
	}

	entries, err = s.ensureAnalyzed(ctx, ws, entries)
	if err != nil {
		s.setStatus(StatusConvertFailed)
		return Outcome{}, err
	}

	jobs, err := s.plan(entries, sel)
	if err != nil {
		s.setStatus(StatusConvertFailed)
		return Outcome{}, err
	}

	summary, runErr := s.driver.Run(ctx, ws, jobs)
	if runErr != nil && !summary.Canceled {
		s.setStatus(StatusConvertFailed)
		return Outcome{}, runErr
	}

	presentation, err := s.packager.Package(summary.Results)
	if err != nil {
		s.setStatus(StatusConvertFailed)
		return Outcome{}, err
	}

	s.mu.Lock()
	s.summary = &summary
	s.presentation = presentation
	s.mu.Unlock()

	switch {
	case summary.Canceled:
		s.setStatus(StatusCanceled)
	case len(summary.Results) == 0:
		s.setStatus(StatusNoOutput)
	default:
		s.setStatus(StatusConverted)
	}
	return Outcome{Summary: summary, Presentation: presentation}, runErr
}

// ensureAnalyzed probes entries without a descriptor and returns fresh
// snapshots of all of them.
func (s *Session) ensureAnalyzed(ctx context.Context, ws *workset.WorkingSet, entries []workset.Entry) ([]workset.Entry, error) {
	out := make([]workset.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Analysis == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d, err := s.prober.Probe(ctx, ws, probe.Target{ID: e.ID, Extension: e.Extension, Type: e.Type})
			if err != nil {
				if errors.Is(err, workset.ErrUnknownEntry) {
					continue
				}
				s.logf("Analysis failed (%s): %v", e.DisplayName, err)
			}
			if err := ws.SetAnalysis(e.ID, d); err != nil {
				continue
			}
			e, _ = ws.Get(e.ID)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Session) plan(entries []workset.Entry, sel plan.Selection) ([]queue.Job, error) {
	taken := mediatypes.NewNameSet()
	jobs := make([]queue.Job, 0, len(entries))
	for i, e := range entries {
		p, err := s.resolver.Resolve(e, sel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.DisplayName, err)
		}
		jobs = append(jobs, queue.Job{
			Entry:  e,
			Plan:   p,
			Output: plan.OutputName(e.DisplayName, p.Container, taken, i),
		})
	}
	return jobs, nil
}

// Plans resolves sel against the active set without running anything.
func (s *Session) Plans(sel plan.Selection) ([]queue.Job, error) {
	return s.plan(s.active().Entries(), sel)
}

// Results returns the latest run's summary and presentation.
func (s *Session) Results() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return Outcome{}, ErrNoResults
	}
	return Outcome{Summary: *s.summary, Presentation: s.presentation}, nil
}

// ResultFile returns one downloadable artifact of the latest run by name:
// an individual output or the bundle archive.
func (s *Session) ResultFile(name string) (bundle.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return bundle.Artifact{}, ErrNoResults
	}
	for _, a := range s.presentation.Artifacts {
		if a.Name == name {
			return a, nil
		}
	}
	for _, r := range s.summary.Results {
		if r.Name == name {
			return bundle.Artifact{Name: r.Name, Size: r.Size, SizeLabel: mediatypes.FormatBytes(r.Size), Data: r.Data}, nil
		}
	}
	return bundle.Artifact{}, fmt.Errorf("%w: %s", ErrNoResults, name)
}

// DownloadAll compresses every result of the latest run into one archive.
func (s *Session) DownloadAll() (bundle.Artifact, error) {
	s.mu.Lock()
	summary := s.summary
	s.mu.Unlock()
	if summary == nil || len(summary.Results) == 0 {
		return bundle.Artifact{}, ErrNoResults
	}
	return s.packager.DownloadAll(summary.Results)
}

// Status returns a snapshot of the session.
func (s *Session) Status() Snapshot {
	ds := s.driver.Status()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Mode:        s.mode,
		State:       ds.State,
		Analyzing:   s.analyzing,
		EngineReady: ds.EngineReady,
		Status:      s.status,
		Progress:    ds.Progress,
		Entries:     s.sets[s.mode].Len(),
	}
	if s.analyzing {
		snap.Progress = s.analysisProg
	}
	if s.summary != nil {
		snap.Results = len(s.summary.Results)
	}
	return snap
}

// SetStats counts one working set.
type SetStats struct {
	Entries int
	Staged  int
}

// Stats counts the entries and staged inputs of both working sets.
func (s *Session) Stats() map[mediatypes.MediaType]SetStats {
	out := make(map[mediatypes.MediaType]SetStats, len(s.sets))
	for mode, ws := range s.sets {
		out[mode] = SetStats{Entries: ws.Len(), Staged: len(ws.StagedPaths())}
	}
	return out
}

// Logs returns the user-facing activity log.
func (s *Session) Logs() []string {
	return s.activity.Lines()
}

// EngineLogs returns the raw engine output kept in the ring buffer.
func (s *Session) EngineLogs() []string {
	return s.logs.Lines()
}

// Presets returns the presets applicable to the active mode.
func (s *Session) Presets() []plan.Preset {
	return s.resolver.Catalog().List(s.Mode())
}

// Choices lists what the pickers offer for the active mode.
type Choices struct {
	Mode             mediatypes.MediaType  `json:"mode"`
	Presets          []plan.Preset         `json:"presets"`
	AudioContainers  []plan.AudioContainer `json:"audioContainers"`
	VideoContainers  []plan.VideoContainer `json:"videoContainers,omitempty"`
	Tiers            []plan.Tier           `json:"tiers"`
	DefaultContainer string                `json:"defaultContainer"`
}

// Choices returns the presets, containers and tiers for the active mode.
// Audio containers are offered in video mode too, for audio extraction.
func (s *Session) Choices() Choices {
	mode := s.Mode()
	c := Choices{
		Mode:             mode,
		Presets:          s.resolver.Catalog().List(mode),
		AudioContainers:  plan.AudioContainers,
		Tiers:            append(append([]plan.Tier(nil), plan.Tiers...), plan.TierLossless, plan.TierCustom),
		DefaultContainer: plan.DefaultContainer(mode),
	}
	if mode == mediatypes.Video {
		c.VideoContainers = plan.VideoContainers
	}
	return c
}
