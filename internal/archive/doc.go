// Package archive reads and writes in-memory zip archives and flattens
// uploads into media items.
//
// [Expander] walks an upload: plain files are tested against a media
// predicate, archives are decompressed and each entry is walked in sorted
// name order, recursing into nested archives with the virtual path
// extended by the entry name. A corrupt archive drops only its own branch.
//
// [ZipCodec] writes entries with a fixed modification time, so the same
// ordered input always produces the same bytes.
package archive
