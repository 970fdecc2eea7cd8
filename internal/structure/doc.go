// Package structure enforces the directory skeleton of a project root.
//
// A Policy is plain data: an ordered list of relative paths, each required to
// be a directory or a file. Validate reports what is missing or has the wrong
// type without touching the filesystem; Ensure creates the missing entries in
// policy order. Ensure is idempotent and never deletes, truncates or
// overwrites existing content.
package structure
