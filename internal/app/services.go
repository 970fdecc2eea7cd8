package app

import (
	"context"
	"fmt"

	"sotugyo/internal/catalog"
	"sotugyo/internal/config"
	"sotugyo/internal/events"
	"sotugyo/internal/launch"
	"sotugyo/internal/paths"
	"sotugyo/internal/project"
	"sotugyo/internal/registry"
	"sotugyo/internal/settings"
	"sotugyo/internal/structure"
	"sotugyo/internal/toolreg"
	"sotugyo/pkg/logging"
)

// Services holds the explicitly constructed core services. There is exactly
// one instance per Application and nothing in the core reaches for it
// through a global.
type Services struct {
	Bus       *events.Bus
	Registry  *registry.Registry
	Structure *structure.Service
	Settings  *settings.Repository
	Projects  *project.Service
	Catalog   *catalog.Store
	Tools     *toolreg.Registry
	Launcher  *launch.Coordinator

	// LaunchLogDir is where launch logs are written and pruned.
	LaunchLogDir string
}

// InitializeServices builds the core services in dependency order:
// event bus, registry, structure, settings, registered tools, catalog,
// launcher and finally
// the project facade.
func InitializeServices(resolver *paths.Resolver, cfg config.Config) (*Services, error) {
	registryPath, err := resolver.RegistryPath()
	if err != nil {
		return nil, err
	}
	legacyPath, err := resolver.LegacyRegistryPath()
	if err != nil {
		return nil, err
	}
	toolsPath, err := resolver.ToolRegistryPath()
	if err != nil {
		return nil, err
	}

	policy, err := cfg.Policy().Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid structure policy: %w", err)
	}
	structureService, err := structure.NewService(policy)
	if err != nil {
		return nil, err
	}

	logDir := cfg.Launch.LogDir
	if logDir == "" {
		if logDir, err = resolver.LaunchLogDir(); err != nil {
			return nil, err
		}
	}

	bus := events.NewBus()
	reg := registry.New(registryPath, registry.WithLegacyPath(legacyPath))
	repo := settings.NewRepository()

	roots := resolver.PackageRoots(cfg.Packages.Roots)
	tools := toolreg.New(toolsPath)
	store := catalog.NewStore(catalog.NewScanner(), roots, bus, catalog.WithToolSource(tools))

	launcher := launch.NewCoordinator(store, logDir,
		launch.WithPublisher(bus),
		launch.WithPackageRoots(store.Roots),
	)

	projects := project.NewService(reg, structureService, repo,
		project.WithPublisher(bus),
		project.WithCatalog(store),
	)

	logging.Debug("Bootstrap", "Services ready: registry=%s packageRoots=%v launchLogs=%s", registryPath, roots, logDir)

	return &Services{
		Bus:          bus,
		Registry:     reg,
		Structure:    structureService,
		Settings:     repo,
		Projects:     projects,
		Catalog:      store,
		Tools:        tools,
		Launcher:     launcher,
		LaunchLogDir: logDir,
	}, nil
}

// logEvents mirrors every bus event into the debug log until ctx is done.
func (s *Services) logEvents(ctx context.Context) {
	ch, cancel := s.Bus.Subscribe(64)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			logging.Debug("Events", "%s %s: %s", ev.Kind, ev.Reason, ev.Message)
		}
	}
}
