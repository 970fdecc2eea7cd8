// Package config loads the sotugyo application configuration.
//
// Configuration is read from a single file, config.yaml, in the machine
// configuration directory (see package paths). A missing file means the
// defaults. Unknown keys are rejected.
//
// # Configuration Structure
//
//	logLevel: warn                 # debug, info, warn or error (default: warn)
//	packages:
//	  roots:                       # searched before REZ_PACKAGES_PATH
//	    - /studio/rez/packages
//	    - local_packages           # relative to the configuration directory
//	  watchDebounce: 500ms         # quiet period before a rescan (default: 500ms)
//	launch:
//	  logDir: /var/tmp/sotugyo     # launch log directory (default: <ConfigDir>/logs/launch)
//	  logRetention: 20             # logs kept per package by `tools logs prune`
//	structure:
//	  entries:                     # replaces the built-in project skeleton
//	    - {path: assets, kind: dir}
//	    - {path: config/project_settings.json, kind: file, content: "{}\n"}
//
// # Environment Overrides
//
//	SOTUGYO_LOG_LEVEL       replaces logLevel
//	SOTUGYO_PACKAGE_ROOTS   replaces packages.roots (OS path list)
//
// # Errors
//
// LoadConfig returns a ConfigurationErrorCollection. Each ConfigurationError
// carries the file, an error type (io, parse, env or validation), the line
// number when yaml reports one and suggestions for fixing it.
//
// # Usage Examples
//
//	cfg, err := config.LoadConfig(configDir)
//	if err != nil {
//	    var errs config.ConfigurationErrorCollection
//	    if errors.As(err, &errs) {
//	        fmt.Println(errs.GetDetailedReport())
//	    }
//	    return err
//	}
//	policy := cfg.Policy()
package config
