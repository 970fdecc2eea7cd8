// Package settings reads and writes the per-project settings document kept
// at config/project_settings.json inside each project root.
//
// The document is an open key/value tree. Known keys have typed accessors on
// Settings; any other key is carried through untouched. Saving merges the
// caller's changes into whatever is on disk at that moment, so a concurrent
// external edit to an unrelated key is never lost.
package settings
