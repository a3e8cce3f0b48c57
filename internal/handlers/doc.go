// Package handlers provides the HTTP API of the media converter.
//
// It includes handlers for:
//   - Switching between audio and video mode
//   - Uploading files and archives into the working set
//   - Analyzing entries and previewing or running conversions
//   - Downloading individual results or one zip bundle
//   - Browsing, uploading to, unzipping in and running commands against the workspace
//   - Session events over server-sent events, and the activity and engine logs
//   - Health checks and version information
//
// Pipeline errors are mapped to status codes: unknown entries and paths
// give 404, a running conversion gives 409, invalid modes and selections
// give 400, and requests the pipeline cannot act on give 422.
package handlers
