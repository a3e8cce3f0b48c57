// Package bundle turns conversion results into downloads: nothing, a few
// individual files, or one store-only zip above a count threshold.
package bundle
