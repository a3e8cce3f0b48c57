// Package transcoder runs a local ffmpeg binary as the conversion engine.
//
// A [Transcoder] implements engine.Engine on top of a filesystem.Sandbox:
// file operations map onto the sandbox directory and Exec launches ffmpeg
// with that directory as its working directory, so every relative path in
// an argument list resolves inside the sandbox. Absolute paths and parent
// references that leave the sandbox are rejected before launch.
//
// # Output and progress
//
// ffmpeg writes its report and status lines to stderr, updating the status
// line in place with carriage returns. Output is split on both \r and \n
// and each line is emitted as a log event. Once a "Duration:" line has been
// seen, every "time=" update is converted into a progress fraction.
//
// # Exit codes
//
// A normal exit returns ffmpeg's status. A process killed by a signal
// (typically the kernel OOM killer) reports engine.ExitAborted.
//
// # Concurrency
//
// All operations share one mutex. [Transcoder.Cleanup] may be called from
// another goroutine during shutdown to kill an in-flight process.
package transcoder
