// Package registry keeps the list of known projects and the last selected one.
//
// # Document
//
// The registry is stored as projects.yaml in the machine configuration
// directory:
//
//	schemaVersion: 1
//	lastSelected: 0b6c3c52-4a9e-4f55-9b59-5b0c2f8e8a11
//	projects:
//	  - id: 0b6c3c52-4a9e-4f55-9b59-5b0c2f8e8a11
//	    name: Alpha
//	    root: /projects/alpha
//	    createdAt: 2024-03-01T12:30:00Z
//
// Fields this release does not know about are ignored on read, so documents
// written by newer releases stay readable. The JSON registry written by
// earlier releases (projects.json) is imported once, through a schema
// migration, when no projects.yaml exists yet.
//
// # Invariants
//
//   - Project IDs are unique and never reused.
//   - A root is registered at most once; it never changes after registration.
//   - lastSelected, when set, names a registered project. Unregistering the
//     selected project clears it, and a dangling value found on disk is dropped.
//
// # Failure handling
//
// A document that cannot be parsed is moved aside (projects.yaml.corrupt-<time>)
// and the registry continues empty; the problem is reported through
// Warnings as a *RegistryCorruptWarning rather than as an error. A document
// that exists but cannot be read at all is left in place: listing continues
// empty and every mutation fails until it becomes readable again.
//
// # Concurrency
//
// All operations are serialized by a mutex and every mutation persists the
// full document (through a temporary file and rename) before returning.
// Concurrent access from several processes is not coordinated.
package registry
