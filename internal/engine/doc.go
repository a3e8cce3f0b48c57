// Package engine defines the contract between the conversion pipeline and
// the external transcoding backend.
//
// The backend owns a private filesystem and runs one command at a time. An
// [Engine] exposes file operations on that filesystem, Exec for running a
// command, and an event stream of log lines and progress fractions.
// Implementations embed [Emitter] to publish events.
//
// Engine output is the only structured-data channel for media inspection.
// A [LogBuffer] retains the most recent lines; a caller takes a [Mark]
// before issuing a command and reads [LogBuffer.Since] afterwards. This
// correlation is only meaningful while engine calls do not overlap.
//
// The ffmpeg-backed implementation lives in the transcoder package and an
// in-memory fake for tests lives in enginetest.
package engine
