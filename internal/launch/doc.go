// Package launch starts tools from the package catalog as detached
// processes.
//
// A launch resolves its package against a CatalogSource, creates a uniquely
// named log file under the launch log directory, and spawns the resolved
// executable in its own session (process group on Windows) with stdin
// closed and stdout and stderr written to the log. Launch returns as soon
// as the process has started; the child outlives the launcher and its exit
// status is never reported.
//
// Log files are named <name>_<version>_<YYYYmmdd_HHMMSS>.log after
// sanitizing name and version, with a -N suffix when two launches of the
// same package fall in the same second. Prune trims old logs per package.
package launch
