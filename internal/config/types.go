package config

import (
	"time"

	"sotugyo/internal/structure"
)

// Config is the top-level application configuration, read from
// <ConfigDir>/config.yaml.
type Config struct {
	// LogLevel is one of debug, info, warn or error (default: info)
	LogLevel  string          `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	Packages  PackagesConfig  `yaml:"packages,omitempty" json:"packages"`
	Launch    LaunchConfig    `yaml:"launch,omitempty" json:"launch"`
	Structure StructureConfig `yaml:"structure,omitempty" json:"structure"`
}

// PackagesConfig controls the tool package catalog.
type PackagesConfig struct {
	// Roots are searched before REZ_PACKAGES_PATH and the default package root.
	// Relative entries are taken relative to the configuration directory.
	Roots []string `yaml:"roots,omitempty" json:"roots,omitempty"`
	// WatchDebounce groups filesystem events before a rescan (default: 500ms)
	WatchDebounce time.Duration `yaml:"watchDebounce,omitempty" json:"watchDebounce,omitempty"`
}

// LaunchConfig controls tool launches.
type LaunchConfig struct {
	// LogDir overrides the launch log directory
	LogDir string `yaml:"logDir,omitempty" json:"logDir,omitempty"`
	// LogRetention is how many launch logs per package `tools logs prune` keeps
	LogRetention int `yaml:"logRetention,omitempty" json:"logRetention,omitempty"`
}

// StructureConfig replaces the built-in project skeleton when Entries is set.
type StructureConfig struct {
	Entries []structure.Entry `yaml:"entries,omitempty" json:"entries,omitempty"`
}

// Policy returns the configured project structure policy, or the default
// skeleton when none is configured.
func (c Config) Policy() structure.Policy {
	if len(c.Structure.Entries) == 0 {
		return structure.DefaultPolicy()
	}
	return structure.Policy(c.Structure.Entries)
}
