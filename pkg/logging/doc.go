// Package logging provides the subsystem-tagged structured logger used by
// every sotugyo component.
//
// It is a thin layer over the standard slog package: callers name the
// subsystem that produced a record and pass a printf-style message, and the
// package decides where the record is written.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Degraded but recoverable conditions (corrupt registry, logging failures)
//   - **Error**: Failures that abort a single operation
//
// # Usage Examples
//
//	// CLI: human readable text on stderr
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	// Text on stderr plus a rotated JSON file under the log directory
//	logging.Init(logging.Options{
//	    Level:    logging.LevelDebug,
//	    Output:   os.Stderr,
//	    FilePath: paths.AppLogPath(),
//	})
//	defer logging.Close()
//
//	logging.Info("Registry", "Registered project %s at %s", p.Name, p.Root)
//	logging.Error("Launch", err, "Failed to spawn %s", pkg.Ref())
//
// The rotated file is managed by lumberjack; size, backup count and age are
// configurable through Options and default to 10 MB, 5 backups and 30 days.
//
// # Subsystems
//
//   - **Bootstrap**: Application wiring and configuration loading
//   - **Registry**: Project registry persistence
//   - **Structure**: Directory skeleton validation and repair
//   - **Settings**: Per-project settings documents
//   - **Catalog**: Package repository scans and watching
//   - **Launch**: Detached tool launches
//   - **Events**: Presentation event delivery
//
// # Thread Safety
//
// Logging is safe for concurrent use. Init may be called again at runtime
// (for example after the --debug flag is parsed); records logged concurrently
// with re-initialization go to either the old or the new handler.
package logging
