package app

import (
	"io"
	"os"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of config.yaml
	Debug bool

	// ConfigDir overrides the machine configuration directory
	ConfigDir string

	// LogFile, when set, receives JSON log records through a rotated file
	LogFile string

	// LogOutput receives human readable log records (default: stderr)
	LogOutput io.Writer
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configDir, logFile string) *Config {
	return &Config{
		Debug:     debug,
		ConfigDir: configDir,
		LogFile:   logFile,
		LogOutput: os.Stderr,
	}
}
