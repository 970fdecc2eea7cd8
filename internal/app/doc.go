// Package app bootstraps sotugyo: it resolves the configuration directory,
// loads config.yaml, configures logging and constructs the core services
// (registry, structure, settings, catalog, launcher and the project facade)
// around a single event bus.
//
// Every service is created here and handed to its callers. There is no
// process-wide singleton; an Application lives for one CLI invocation and
// Close releases it.
package app
