// Package plan resolves a user's target selection into an engine-ready
// conversion plan and renders plans as engine argument lists.
//
// Two resolution paths exist. A named preset fixes the container (or lets
// the caller pick one from the mode's list), codecs and a quality tier. The
// explicit path takes container, codecs and per-stream quality from the
// user and validates the codecs against the container table, falling back
// to the container's default codec.
//
// Quality is modeled as sum types:
//
//	VideoQuality: VideoLossless | VideoCRF | VideoExplicit
//	AudioQuality: AudioLossless | AudioBitrate
//
// Lossless requests on codecs that cannot express them are silently
// replaced (audio: the ultra bitrate, video: an explicit 8000 kbps) so a
// plan is never infeasible. CRF speed presets pass through the capability
// profile's ladder, and a CRF plan caps the output height at the tier's
// maximum when the source is taller.
package plan
