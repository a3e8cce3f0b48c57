// Package logging provides the leveled logging interface used across the
// media converter.
//
// Messages are written through zerolog. The console writer is used by
// default; set LOG_FORMAT=json for structured output suitable for log
// collectors.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including raw engine output
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true.
package logging
