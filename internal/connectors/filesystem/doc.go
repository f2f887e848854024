// Package filesystem implements a document source over a local directory
// tree or a single file.
//
// Paths are keyed relative to the root with forward slashes and filtered
// with [pathfilter.Filter]. Hidden directories are not descended into.
// Watch uses fsnotify and adds newly created directories to the watch set
// as they appear; removals and renames are reported as deletions.
package filesystem
