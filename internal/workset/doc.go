// Package workset holds the entries of one processing mode and the engine
// paths their bytes are staged under.
//
// A staged path is written once per entry and reused by every later probe
// or conversion until the set releases it, either per entry on removal or
// wholesale on [WorkingSet.ReleaseStaged] and [WorkingSet.Clear].
package workset
