package config

import "time"

const (
	// DefaultLogLevel is used when neither config.yaml nor the environment set one.
	// Warnings keep command output readable; --debug lowers it.
	DefaultLogLevel = "warn"

	// DefaultWatchDebounce is the quiet period before a package rescan.
	DefaultWatchDebounce = 500 * time.Millisecond

	// DefaultLogRetention is the number of launch logs kept per package.
	DefaultLogRetention = 20
)

// GetDefaultConfig returns the configuration used when config.yaml is absent.
func GetDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Packages: PackagesConfig{
			WatchDebounce: DefaultWatchDebounce,
		},
		Launch: LaunchConfig{
			LogRetention: DefaultLogRetention,
		},
	}
}
