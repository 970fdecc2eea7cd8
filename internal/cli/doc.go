// Package cli holds the terminal helpers shared by the sotugyo commands:
// TTY detection, a progress spinner for long operations and markdown
// rendering for package descriptions.
//
// Everything here degrades to plain output when the writer is not a
// terminal, so command output stays pipe and test friendly.
package cli
