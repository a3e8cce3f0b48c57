package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"media-converter/internal/engine/enginetest"
	"media-converter/internal/mediatypes"
	"media-converter/internal/plan"
	"media-converter/internal/workset"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var mp3Plan = plan.Plan{
	Mode:         mediatypes.Audio,
	Container:    "mp3",
	AudioCodec:   "libmp3lame",
	Audio:        plan.AudioBitrate{Kbps: 192},
	IncludeAudio: true,
}

func setup(t *testing.T, n int) (*Driver, *enginetest.Fake, *workset.WorkingSet, []Job) {
	t.Helper()
	fake := enginetest.New()
	ws := workset.New(mediatypes.Audio, fake)

	jobs := make([]Job, 0, n)
	for i := 1; i <= n; i++ {
		e := ws.Add(workset.Input{Name: fmt.Sprintf("song%d.wav", i), Data: []byte(fmt.Sprintf("pcm%d", i))})
		jobs = append(jobs, Job{Entry: e, Plan: mp3Plan, Output: fmt.Sprintf("song%d.mp3", i)})
	}
	return NewDriver(fake, nil), fake, ws, jobs
}

func collectLogs(d *Driver) (func() []string, func()) {
	var mu sync.Mutex
	var lines []string
	unsubscribe := d.Subscribe(func(ev Event) {
		if ev.Kind == LogEvent {
			mu.Lock()
			lines = append(lines, ev.Message)
			mu.Unlock()
		}
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}, unsubscribe
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestRunConvertsInOrder(t *testing.T) {
	d, fake, ws, jobs := setup(t, 3)

	summary, err := d.Run(context.Background(), ws, jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var names []string
	for _, r := range summary.Results {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"song1.mp3", "song2.mp3", "song3.mp3"}, names); diff != "" {
		t.Errorf("Results mismatch (-want +got):\n%s", diff)
	}
	if got := string(summary.Results[0].Data); got != "converted:pcm1" {
		t.Errorf("Expected converted bytes, got %q", got)
	}
	if summary.Results[0].Size != int64(len("converted:pcm1")) {
		t.Errorf("Unexpected size %d", summary.Results[0].Size)
	}

	execs := fake.Execs()
	if len(execs) != 3 {
		t.Fatalf("Expected 3 engine executions, got %d", len(execs))
	}
	for i, args := range execs {
		wantInput := fmt.Sprintf("staging/audio_input_%d.wav", i+1)
		if args[2] != wantInput {
			t.Errorf("Job %d: expected input %s, got %s", i, wantInput, args[2])
		}
	}

	for _, j := range jobs {
		out := OutputDir + "/" + j.Output
		if fake.Has(out) {
			t.Errorf("Expected %s to be deleted after the run", out)
		}
	}
	if got := len(ws.StagedPaths()); got != 3 {
		t.Errorf("Expected staged inputs to stay tracked for reuse, got %d", got)
	}
	if fake.MaxConcurrent() != 1 {
		t.Errorf("Expected strictly sequential engine calls, got %d overlapping", fake.MaxConcurrent())
	}
	if s := d.Status(); s.State != Idle || s.Progress.Total != 0 || !s.EngineReady {
		t.Errorf("Expected idle driver with reset cursors, got %+v", s)
	}
}

func TestRunContinuesAfterFailures(t *testing.T) {
	d, fake, ws, jobs := setup(t, 5)
	fake.ExitCodes["output/song2.mp3"] = 1
	fake.ExitCodes["output/song4.mp3"] = 69

	logs, unsubscribe := collectLogs(d)
	defer unsubscribe()

	summary, err := d.Run(context.Background(), ws, jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.Results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(summary.Results))
	}
	want := []Failure{
		{Name: "song2.mp3", EntryID: jobs[1].Entry.ID, ExitCode: 1},
		{Name: "song4.mp3", EntryID: jobs[3].Entry.ID, ExitCode: 69},
	}
	if diff := cmp.Diff(want, summary.Failures); diff != "" {
		t.Errorf("Failures mismatch (-want +got):\n%s", diff)
	}
	if n := countPrefix(logs(), "Conversion failed ("); n != 2 {
		t.Errorf("Expected exactly 2 failure lines, got %d in %v", n, logs())
	}
	for _, j := range jobs {
		if fake.Deletes(OutputDir+"/"+j.Output) == 0 {
			t.Errorf("Expected a cleanup attempt for %s", j.Output)
		}
	}
}

func TestRunAbortedExitHint(t *testing.T) {
	d, fake, ws, jobs := setup(t, 1)
	fake.ExitCodes["output/song1.mp3"] = -1

	logs, unsubscribe := collectLogs(d)
	defer unsubscribe()

	summary, err := d.Run(context.Background(), ws, jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Results) != 0 || len(summary.Failures) != 1 {
		t.Fatalf("Expected one failure, got %+v", summary)
	}

	var failure string
	for _, l := range logs() {
		if strings.HasPrefix(l, "Conversion failed (") {
			failure = l
		}
	}
	if !strings.Contains(failure, "exit code -1") || !strings.Contains(failure, "out of memory") {
		t.Errorf("Expected a low-memory hint, got %q", failure)
	}
}

func TestRunMissingOutput(t *testing.T) {
	d, fake, ws, jobs := setup(t, 1)
	fake.Handler = func(context.Context, *enginetest.Fake, []string) (int, error) {
		return 0, nil
	}

	logs, unsubscribe := collectLogs(d)
	defer unsubscribe()

	summary, err := d.Run(context.Background(), ws, jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Results) != 0 || len(summary.Failures) != 1 {
		t.Fatalf("Expected one failure, got %+v", summary)
	}

	var failure string
	for _, l := range logs() {
		if strings.HasPrefix(l, "Conversion failed (") {
			failure = l
		}
	}
	if !strings.Contains(failure, "output missing") {
		t.Errorf("Expected an output missing failure, got %q", failure)
	}
	if strings.Contains(failure, "exit code") {
		t.Errorf("Expected no exit code for a clean exit, got %q", failure)
	}
}

func TestRunInitFailure(t *testing.T) {
	d, fake, ws, jobs := setup(t, 2)
	fake.InitErr = errors.New("wasm core missing")

	var mu sync.Mutex
	var states []State
	unsubscribe := d.Subscribe(func(ev Event) {
		if ev.Kind == StateEvent {
			mu.Lock()
			states = append(states, ev.State)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	summary, err := d.Run(context.Background(), ws, jobs)
	if err == nil || !strings.Contains(err.Error(), "wasm core missing") {
		t.Fatalf("Expected initialization error, got %v", err)
	}
	if len(summary.Results) != 0 {
		t.Errorf("Expected no results, got %d", len(summary.Results))
	}
	if d.EngineReady() {
		t.Error("Expected engine to stay uninitialized")
	}

	mu.Lock()
	got := append([]State(nil), states...)
	mu.Unlock()
	if diff := cmp.Diff([]State{Initializing, Failed, Idle}, got); diff != "" {
		t.Errorf("State transitions mismatch (-want +got):\n%s", diff)
	}

	fake.InitErr = nil
	summary, err = d.Run(context.Background(), ws, jobs)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if len(summary.Results) != 2 {
		t.Errorf("Expected 2 results after retry, got %d", len(summary.Results))
	}
}

func TestRunStagingFailureDiscardsOutputs(t *testing.T) {
	d, fake, ws, jobs := setup(t, 3)
	fake.WriteErr["staging/audio_input_2.wav"] = errors.New("quota exceeded")

	summary, err := d.Run(context.Background(), ws, jobs)
	if err == nil {
		t.Fatal("Expected a fatal error")
	}
	if len(summary.Results) != 0 {
		t.Errorf("Expected partial outputs to be discarded, got %d", len(summary.Results))
	}
	if fake.Has("output/song1.mp3") {
		t.Error("Expected the first output to be deleted from the engine")
	}
	if len(fake.Execs()) != 1 {
		t.Errorf("Expected the run to stop at the failing job, got %d executions", len(fake.Execs()))
	}
	if d.State() != Idle {
		t.Errorf("Expected idle after failure, got %s", d.State())
	}
}

func TestRunPanicIsFatal(t *testing.T) {
	d, fake, ws, jobs := setup(t, 2)
	fake.MarkReady()
	fake.Handler = func(context.Context, *enginetest.Fake, []string) (int, error) {
		panic("engine bridge exploded")
	}

	summary, err := d.Run(context.Background(), ws, jobs)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("Expected panic to surface as an error, got %v", err)
	}
	if len(summary.Results) != 0 {
		t.Errorf("Expected no results, got %d", len(summary.Results))
	}
	if d.State() != Idle {
		t.Errorf("Expected idle after panic, got %s", d.State())
	}
	if fake.Deletes("output/song1.mp3") != 1 {
		t.Errorf("Expected output cleanup during unwinding")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	d, fake, ws, jobs := setup(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	fake.Handler = func(ctx context.Context, f *enginetest.Fake, args []string) (int, error) {
		close(started)
		<-release
		f.Put(args[len(args)-1], []byte("mp3"))
		return 0, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background(), ws, jobs)
		done <- err
	}()

	<-started
	if _, err := d.Run(context.Background(), ws, jobs); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if d.State() != Running {
		t.Errorf("Expected running, got %s", d.State())
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("First run failed: %v", err)
	}
	if len(fake.Execs()) != 1 {
		t.Errorf("Expected a single execution, got %d", len(fake.Execs()))
	}
}

func TestEnsureEngineCollapsesConcurrentCalls(t *testing.T) {
	fake := enginetest.New()
	fake.InitDelay = 50 * time.Millisecond
	d := NewDriver(fake, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- d.EnsureEngine(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("EnsureEngine failed: %v", err)
		}
	}
	if n := fake.InitCalls(); n != 1 {
		t.Errorf("Expected one initialization, got %d", n)
	}
	if err := d.EnsureEngine(context.Background()); err != nil || fake.InitCalls() != 1 {
		t.Errorf("Expected later calls to be no-ops, got err=%v calls=%d", err, fake.InitCalls())
	}
}

func TestRunReusesStagedInput(t *testing.T) {
	d, fake, ws, jobs := setup(t, 1)
	if err := d.EnsureEngine(context.Background()); err != nil {
		t.Fatalf("EnsureEngine failed: %v", err)
	}

	staged, err := ws.Stage(context.Background(), jobs[0].Entry.ID)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	if _, err := d.Run(context.Background(), ws, jobs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := fake.Writes(staged); n != 1 {
		t.Errorf("Expected the staged input to be written once, got %d", n)
	}
}

func TestRunCancellation(t *testing.T) {
	d, fake, ws, jobs := setup(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake.Handler = func(_ context.Context, f *enginetest.Fake, args []string) (int, error) {
		f.Put(args[len(args)-1], []byte("mp3"))
		cancel()
		return 0, nil
	}

	summary, err := d.Run(ctx, ws, jobs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if !summary.Canceled {
		t.Error("Expected the summary to be marked canceled")
	}
	if len(summary.Results) != 1 {
		t.Errorf("Expected the finished job to be kept, got %d results", len(summary.Results))
	}
	if len(fake.Execs()) != 1 {
		t.Errorf("Expected no job to start after cancel, got %d executions", len(fake.Execs()))
	}
	if fake.Has("output/song1.mp3") {
		t.Error("Expected the output to be deleted")
	}
	if d.State() != Idle {
		t.Errorf("Expected idle after cancel, got %s", d.State())
	}
}

func TestRunProgress(t *testing.T) {
	d, _, ws, jobs := setup(t, 2)

	var mu sync.Mutex
	var percents []float64
	unsubscribe := d.Subscribe(func(ev Event) {
		if ev.Kind == ProgressEvent {
			mu.Lock()
			percents = append(percents, ev.Progress.Percent)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	if _, err := d.Run(context.Background(), ws, jobs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("Expected progress to end at 100, got %v", percents)
	}
	seen := map[float64]bool{}
	for i, p := range percents {
		if p < 0 || p > 100 {
			t.Errorf("Progress %v out of range", p)
		}
		if i > 0 && p < percents[i-1] {
			t.Errorf("Expected non-decreasing progress, got %v", percents)
		}
		seen[p] = true
	}
	for _, want := range []float64{0, 25, 50, 75} {
		if !seen[want] {
			t.Errorf("Expected a %v%% update in %v", want, percents)
		}
	}
}

type recordingGate struct {
	calls int
	err   error
}

func (g *recordingGate) WaitIfPaused(context.Context) error {
	g.calls++
	return g.err
}

func TestRunWaitsOnGate(t *testing.T) {
	_, fake, ws, jobs := setup(t, 2)
	gate := &recordingGate{}
	d := NewDriver(fake, gate)

	if _, err := d.Run(context.Background(), ws, jobs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gate.calls != 2 {
		t.Errorf("Expected the gate to be consulted per job, got %d", gate.calls)
	}

	gate.err = context.DeadlineExceeded
	if _, err := d.Run(context.Background(), ws, jobs); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected gate error to abort the run, got %v", err)
	}
}
