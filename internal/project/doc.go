// Package project is the single entry point the CLI uses for project
// operations. It composes the registry, the structure service and the
// settings repository, publishes registry-changed and
// structure-validation-result events, and folds their errors into a Result
// whose issues are either auto-resolvable (missing entries) or need a user
// decision (conflicts, a missing root, a corrupt registry, unresolved
// executables).
package project
