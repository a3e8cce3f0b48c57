package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"media-converter/internal/engine"
	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"
	"media-converter/internal/plan"
	"media-converter/internal/workset"
)

// OutputDir is the engine directory conversions write into.
const OutputDir = "output"

var tracer = otel.Tracer("media-converter/queue")

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = errors.New("conversion already in progress")

// State is the driver's lifecycle state.
type State string

const (
	Idle         State = "idle"
	Initializing State = "initializing"
	Running      State = "running"
	Failed       State = "failed"
)

// Job pairs an entry with its resolved plan and unique output name.
type Job struct {
	Entry  workset.Entry
	Plan   plan.Plan
	Output string
}

// Result is one successfully produced output.
type Result struct {
	Name    string `json:"name"`
	EntryID string `json:"entryId"`
	Size    int64  `json:"size"`
	Data    []byte `json:"-"`
}

// Failure records a job that produced no output.
type Failure struct {
	Name     string `json:"name"`
	EntryID  string `json:"entryId"`
	ExitCode int    `json:"exitCode"`
}

// Summary is the outcome of a run that was not aborted.
type Summary struct {
	Results  []Result      `json:"results"`
	Failures []Failure     `json:"failures"`
	Canceled bool          `json:"canceled"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Progress is the aggregate position of a run.
type Progress struct {
	Job     int           `json:"job"`
	Total   int           `json:"total"`
	Percent float64       `json:"percent"`
	Elapsed time.Duration `json:"elapsed"`
	Label   string        `json:"label,omitempty"`
}

// EventKind identifies the payload of an Event.
type EventKind int

const (
	StateEvent EventKind = iota
	ProgressEvent
	LogEvent
)

// Event is published to driver subscribers.
type Event struct {
	Kind     EventKind
	State    State
	Progress Progress
	Message  string
}

// Gate blocks before each job while resources are short. *memory.Monitor
// satisfies it.
type Gate interface {
	WaitIfPaused(ctx context.Context) error
}

// Status is a snapshot of the driver.
type Status struct {
	State       State    `json:"state"`
	EngineReady bool     `json:"engineReady"`
	Progress    Progress `json:"progress"`
}

// Driver executes conversion jobs one at a time against a single engine.
type Driver struct {
	engine engine.Engine
	gate   Gate

	initGroup   singleflight.Group
	engineReady atomic.Bool

	mu       sync.Mutex
	state    State
	progress Progress

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewDriver returns an idle driver. gate may be nil.
func NewDriver(eng engine.Engine, gate Gate) *Driver {
	return &Driver{
		engine: eng,
		gate:   gate,
		state:  Idle,
		subs:   make(map[int]func(Event)),
	}
}

// Subscribe registers fn for driver events and returns its removal function.
func (d *Driver) Subscribe(fn func(Event)) func() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			d.subMu.Lock()
			delete(d.subs, id)
			d.subMu.Unlock()
		})
	}
}

func (d *Driver) publish(ev Event) {
	d.subMu.RLock()
	subs := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (d *Driver) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.Info("%s", msg)
	d.publish(Event{Kind: LogEvent, Message: msg})
}

func (d *Driver) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.Warn("%s", msg)
	d.publish(Event{Kind: LogEvent, Message: msg})
}

// Status returns the current state and progress cursors.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{State: d.state, EngineReady: d.engineReady.Load(), Progress: d.progress}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// EngineReady reports whether the engine has been initialized.
func (d *Driver) EngineReady() bool {
	return d.engineReady.Load()
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	if s == Idle {
		d.progress = Progress{}
	}
	d.mu.Unlock()
	d.publish(Event{Kind: StateEvent, State: s})
}

// EnsureEngine initializes the engine once. Concurrent callers share a
// single attempt; a failed attempt may be retried by a later call.
func (d *Driver) EnsureEngine(ctx context.Context) error {
	if d.engineReady.Load() {
		return nil
	}

	_, err, _ := d.initGroup.Do("init", func() (interface{}, error) {
		if d.engineReady.Load() {
			return nil, nil
		}
		ctx, span := tracer.Start(ctx, "engine.initialize")
		defer span.End()

		start := time.Now()
		if err := d.engine.Initialize(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		d.engineReady.Store(true)
		logging.Info("Engine initialized in %v", time.Since(start).Round(time.Millisecond))
		return nil, nil
	})
	return err
}

// tryBegin moves Idle to Initializing, or reports false when busy.
func (d *Driver) tryBegin(total int) bool {
	d.mu.Lock()
	if d.state != Idle {
		d.mu.Unlock()
		return false
	}
	d.state = Initializing
	d.progress = Progress{Total: total}
	d.mu.Unlock()
	d.publish(Event{Kind: StateEvent, State: Initializing})
	return true
}

func (d *Driver) setProgress(p Progress) {
	d.mu.Lock()
	d.progress = p
	d.mu.Unlock()
	metrics.ConversionProgress.Set(p.Percent)
	d.publish(Event{Kind: ProgressEvent, Progress: p})
}

// Run converts jobs in order. It returns ErrBusy when a run is already in
// flight. A failing job is logged and skipped; an engine initialization
// failure, a staging failure or a panic aborts the run, discards every
// output and returns an error. When ctx ends the run stops before the next
// job and returns the results so far with Canceled set.
func (d *Driver) Run(ctx context.Context, ws *workset.WorkingSet, jobs []Job) (summary Summary, err error) {
	if !d.tryBegin(len(jobs)) {
		metrics.ConversionRunsTotal.WithLabelValues("rejected").Inc()
		return Summary{}, ErrBusy
	}

	ctx, span := tracer.Start(ctx, "queue.run", trace.WithAttributes(
		attribute.String("mode", string(ws.Mode())),
		attribute.Int("jobs", len(jobs)),
	))
	defer span.End()

	metrics.ConversionRunning.Set(1)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion run panicked: %v", r)
			summary = Summary{}
		}

		status := "completed"
		switch {
		case err != nil && summary.Canceled:
			status = "canceled"
		case err != nil:
			status = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.setState(Failed)
			d.warnf("Conversion failed: %v", err)
		}
		metrics.ConversionRunsTotal.WithLabelValues(status).Inc()
		metrics.ConversionRunning.Set(0)
		metrics.ConversionProgress.Set(0)
		d.setState(Idle)
	}()

	if err := d.EnsureEngine(ctx); err != nil {
		return Summary{}, fmt.Errorf("engine initialization failed: %w", err)
	}
	d.setState(Running)

	if err := engine.EnsureDir(ctx, d.engine, OutputDir); err != nil {
		return Summary{}, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	summary = Summary{Results: []Result{}, Failures: []Failure{}}
	for i, job := range jobs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			summary.Canceled = true
			summary.Elapsed = time.Since(start)
			d.logf("Conversion canceled after %d of %d files", i, len(jobs))
			return summary, ctxErr
		}

		result, failure, fatal := d.runJob(ctx, ws, i, len(jobs), job, start)
		if fatal != nil {
			if ctx.Err() != nil && errors.Is(fatal, ctx.Err()) {
				summary.Canceled = true
				summary.Elapsed = time.Since(start)
				d.logf("Conversion canceled after %d of %d files", i, len(jobs))
				return summary, fatal
			}
			return Summary{}, fatal
		}
		if failure != nil {
			summary.Failures = append(summary.Failures, *failure)
			continue
		}
		summary.Results = append(summary.Results, result)
	}

	summary.Elapsed = time.Since(start)
	d.setProgress(Progress{Job: len(jobs), Total: len(jobs), Percent: 100, Elapsed: summary.Elapsed})
	d.logf("Conversion finished: %d of %d succeeded in %v", len(summary.Results), len(jobs), summary.Elapsed.Round(time.Millisecond))
	span.SetAttributes(attribute.Int("results", len(summary.Results)), attribute.Int("failures", len(summary.Failures)))
	return summary, nil
}

// runJob converts one entry. A non-nil failure means the job produced no
// output; a non-nil error aborts the run.
func (d *Driver) runJob(ctx context.Context, ws *workset.WorkingSet, index, total int, job Job, runStart time.Time) (Result, *Failure, error) {
	label := job.Entry.Label()
	ctx, span := tracer.Start(ctx, "queue.job", trace.WithAttributes(
		attribute.String("entry", job.Entry.ID),
		attribute.String("output", job.Output),
		attribute.String("container", job.Plan.Container),
	))
	defer span.End()

	if d.gate != nil {
		if err := d.gate.WaitIfPaused(ctx); err != nil && !errors.Is(err, memory.ErrStopped) {
			return Result{}, nil, err
		}
	}

	progress := func(fraction float64) {
		d.setProgress(Progress{
			Job:     index + 1,
			Total:   total,
			Percent: (float64(index) + fraction) / float64(total) * 100,
			Elapsed: time.Since(runStart),
			Label:   label,
		})
	}
	progress(0)
	d.logf("Converting %d/%d: %s to %s", index+1, total, label, job.Plan.Describe())
	for _, note := range job.Plan.Notes {
		d.logf("%s", note)
	}

	input, err := ws.Stage(ctx, job.Entry.ID)
	if err != nil {
		return Result{}, nil, err
	}

	output := OutputDir + "/" + job.Output
	defer d.removeOutput(ctx, output)

	unsubscribe := d.engine.Subscribe(func(ev engine.Event) {
		if ev.Kind == engine.ProgressEvent {
			progress(ev.Fraction)
		}
	})
	start := time.Now()
	code, execErr := d.engine.Exec(ctx, plan.Args(job.Plan, input, output))
	unsubscribe()
	metrics.ConversionJobDuration.WithLabelValues(string(job.Entry.Type)).Observe(time.Since(start).Seconds())

	if execErr != nil {
		if ctx.Err() != nil {
			return Result{}, nil, ctx.Err()
		}
		return Result{}, d.fail(job, engine.ExitAborted, execErr.Error()), nil
	}
	if code != 0 {
		return Result{}, d.fail(job, code, ""), nil
	}

	data, err := d.engine.ReadFile(ctx, output)
	if err != nil {
		return Result{}, d.fail(job, code, "output missing: "+err.Error()), nil
	}

	metrics.ConversionJobsTotal.WithLabelValues(string(job.Entry.Type), "success").Inc()
	progress(1)
	d.logf("Converted %s to %s (%s)", label, job.Output, mediatypes.FormatBytes(int64(len(data))))
	return Result{Name: job.Output, EntryID: job.Entry.ID, Size: int64(len(data)), Data: data}, nil, nil
}

// fail logs exactly one failure line for a job. A zero code means the
// engine succeeded but the job still produced nothing usable.
func (d *Driver) fail(job Job, code int, detail string) *Failure {
	metrics.ConversionJobsTotal.WithLabelValues(string(job.Entry.Type), "failure").Inc()

	msg := fmt.Sprintf("Conversion failed (%s)", job.Entry.Label())
	if code != 0 {
		msg += fmt.Sprintf(", exit code %d", code)
	}
	switch {
	case detail != "":
		msg += ": " + detail
	case code == engine.ExitAborted:
		msg += ": the engine aborted, most likely out of memory. Try a lower quality tier or a smaller file"
	}
	d.warnf("%s", msg)
	return &Failure{Name: job.Output, EntryID: job.Entry.ID, ExitCode: code}
}

// removeOutput deletes a produced output from the engine. It runs on every
// exit path, including cancellation.
func (d *Driver) removeOutput(ctx context.Context, output string) {
	err := d.engine.DeleteFile(context.WithoutCancel(ctx), output)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		logging.Warn("Failed to delete engine output %s: %v", output, err)
	}
}
