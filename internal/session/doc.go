// Package session is the converter's façade: it owns one working set per
// processing mode, the active mode selector, the conversion driver and the
// latest results, and publishes a status stream for presentation layers.
//
// Everything above this package (HTTP handlers, the CLI) talks to a
// Session; nothing above it touches working sets or the engine directly.
//
// Analysis and conversion are mutually exclusive. While either is in
// flight, mode switches and entry removal are rejected with
// [queue.ErrBusy]; uploads are still accepted because a run works on a
// snapshot of the entries it started with.
package session
