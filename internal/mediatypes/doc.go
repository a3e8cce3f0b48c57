// Package mediatypes provides the naming and classification primitives shared
// by every stage of the conversion pipeline.
//
// This package sits at the bottom of the import graph. It contains pure
// functions with no knowledge of the engine, the working sets, or HTTP.
//
// # Classification
//
// Files are sorted into the two processing modes by MIME hint or extension:
//
//	kind, ok := mediatypes.Classify("clip.MKV", "")
//	// kind == mediatypes.Video, ok == true
//
// Video wins when both rules match. [IsArchive] recognizes zip archives by
// name suffix so the archive expander can recurse into them.
//
// # Naming
//
// Display names must stay unique within a working set regardless of case.
// [NameSet] folds names with golang.org/x/text/cases and [NameSet.Claim]
// appends " (n)" before the extension until the name is free:
//
//	names := mediatypes.NewNameSet("song.mp3")
//	names.Claim("SONG.mp3") // "SONG (1).mp3"
//
// [SanitizeName] turns arbitrary labels into engine-safe path segments.
//
// # Formatting
//
// [FormatBytes], [FormatDuration], [FormatBitrate] and [FormatFrameRate]
// render descriptor values for listings and logs.
package mediatypes
