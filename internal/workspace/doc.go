// Package workspace implements the file-manager variant: an in-memory
// directory tree mirrored against the engine's "workspace" directory and
// a terminal that runs free-form engine commands against it.
//
// The tree is the single writer of the engine-side workspace. Additions
// create parent directories and rename around collisions with "name (n).ext",
// deletions are best effort on the engine side, and [Reconciler.Rebuild]
// reconstructs the tree from the engine after any command that may have
// changed it behind the tree's back.
package workspace
