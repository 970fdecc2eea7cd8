package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"sotugyo/internal/config"
	"sotugyo/internal/paths"
	"sotugyo/pkg/logging"
)

// Application represents the main application structure that bootstraps sotugyo.
// It owns the loaded configuration and the core services for the lifetime of
// one CLI invocation.
//
// Example usage:
//
//	application, err := app.NewApplication(app.NewConfig(false, "", ""))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	projects, err := application.Services().Projects.Projects()
type Application struct {
	config    *Config
	resolver  *paths.Resolver
	configDir string
	settings  config.Config
	services  *Services
	cancel    context.CancelFunc
}

// NewApplication creates and initializes a new application instance:
//
//  1. Resolves the configuration directory
//  2. Loads config.yaml and environment overrides
//  3. Configures logging from the debug flag and the configured level
//  4. Initializes the core services
func NewApplication(cfg *Config) (*Application, error) {
	resolver, err := paths.NewResolver()
	if err != nil {
		return nil, err
	}
	return newApplication(cfg, resolver)
}

func newApplication(cfg *Config, resolver *paths.Resolver) (*Application, error) {
	if cfg.ConfigDir != "" {
		resolver = resolver.WithConfigDir(cfg.ConfigDir)
	}
	configDir, err := resolver.ConfigDir()
	if err != nil {
		return nil, err
	}

	appConfig, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configDir, err)
	}

	configureLogging(cfg, appConfig)
	logging.Debug("Bootstrap", "Using configuration directory %s", configDir)

	services, err := InitializeServices(resolver, appConfig)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go services.logEvents(ctx)

	return &Application{
		config:    cfg,
		resolver:  resolver,
		configDir: configDir,
		settings:  appConfig,
		services:  services,
		cancel:    cancel,
	}, nil
}

func configureLogging(cfg *Config, appConfig config.Config) {
	level, err := logging.ParseLevel(appConfig.LogLevel)
	if err != nil {
		level = logging.LevelWarn
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var output io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		output = cfg.LogOutput
	}
	logging.Init(logging.Options{
		Level:    level,
		Output:   output,
		FilePath: cfg.LogFile,
	})
}

// Services returns the core services.
func (a *Application) Services() *Services {
	return a.services
}

// Settings returns the loaded application configuration.
func (a *Application) Settings() config.Config {
	return a.settings
}

// ConfigDir returns the machine configuration directory in use.
func (a *Application) ConfigDir() string {
	return a.configDir
}

// Resolver returns the path resolver in use.
func (a *Application) Resolver() *paths.Resolver {
	return a.resolver
}

// Close stops background work and flushes the log file.
func (a *Application) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	return logging.Close()
}
