// Package queue drives conversion runs against the single, non-reentrant
// engine.
//
// A Driver moves through Idle, Initializing, Running and back to Idle, or
// through Failed when a run is aborted. Jobs run strictly in order. Each
// job stages its input through the working set (reusing an existing staged
// copy), executes the plan's argument list, reads the output on exit status
// 0 and deletes the engine-side output on every path. A failing job is
// logged with one line and skipped; engine initialization errors, staging
// errors and panics abort the run and discard its outputs.
//
// Overall progress is (finished jobs + current fraction) / total * 100 and
// is published to subscribers together with state changes and log lines.
package queue
