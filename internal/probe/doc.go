// Package probe inspects media through the engine and turns its text
// report into a [Descriptor].
//
// The engine has no structured metadata channel, so the report is parsed
// with the following patterns, each applied independently:
//
//	Audio:\s*([^,\s]+)            first audio codec
//	Video:\s*([^,\s]+)            first video codec
//	Input #0,\s*([^,]+),          container (first demuxer name)
//	(\d{2,})x(\d{2,})             resolution, on the first video stream line
//	\s([\d.]+)\s*fps              frame rate
//	Duration:\s*HH:MM:SS[.ms]     duration
//	bitrate:\s*(\d+)\s*kb/s       overall bitrate
//	Metadata: + indented k : v    tags, first value per key wins
//
// Report text is read back from an [engine.LogBuffer] by mark, which is
// only sound while engine calls are single-flight.
package probe
