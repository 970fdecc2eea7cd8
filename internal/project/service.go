package project

import (
	"errors"
	"fmt"
	"path/filepath"

	"sotugyo/internal/catalog"
	"sotugyo/internal/events"
	"sotugyo/internal/registry"
	"sotugyo/internal/settings"
	"sotugyo/internal/structure"
	"sotugyo/pkg/logging"
)

// CatalogView exposes the current package catalog.
type CatalogView interface {
	Current() *catalog.Catalog
}

// Service is the presentation-facing entry point for project operations.
// It owns no state of its own: every call goes to the registry, the
// structure service or the settings repository it was built with.
type Service struct {
	registry  *registry.Registry
	structure *structure.Service
	settings  *settings.Repository
	catalog   CatalogView
	publisher events.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithCatalog lets Check report packages whose executable is unresolved.
func WithCatalog(c CatalogView) Option {
	return func(s *Service) { s.catalog = c }
}

// NewService composes the project services.
func NewService(reg *registry.Registry, st *structure.Service, repo *settings.Repository, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		structure: st,
		settings:  repo,
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Projects lists the registered projects. A registry that could not be read
// yields an empty list; the problem is reported through Issues.
func (s *Service) Projects() ([]registry.Project, error) {
	return s.registry.List()
}

// Issues returns the registry problems met so far, such as a corrupt
// registry document that was moved aside.
func (s *Service) Issues() []Issue {
	var r Result
	r.addRegistryWarnings(s.registry.Warnings())
	return r.Issues
}

// Register adds a project. With ensure set, the root and every missing
// policy entry are created first; a structure conflict stops the
// registration. Without ensure the root must already exist and is only
// validated.
func (s *Service) Register(name, root string, ensure bool) (Result, error) {
	var result Result

	if ensure {
		// Nothing is created on disk for a registration that must fail anyway.
		if err := registry.ValidateProjectName(name); err != nil {
			return result, err
		}
		if !filepath.IsAbs(root) {
			err := &registry.InvalidPathError{Root: root, Reason: "path is not absolute"}
			result.add(IssueInvalidPath, NeedsDecision, root, "%s", err.Error())
			return result, err
		}
		if doc, err := s.registry.Load(); err == nil {
			if existing := doc.FindByRoot(filepath.Clean(root)); existing != nil {
				return result, &registry.DuplicatePathError{Root: filepath.Clean(root), Existing: *existing}
			}
		}
		created, err := s.structure.Ensure(root)
		result.Created = created
		if err != nil {
			s.addStructureError(&result, root, err)
			s.emitRepair(root, created, err)
			return result, err
		}
		s.emitRepair(root, created, nil)
	}

	p, err := s.registry.Register(name, root)
	if err != nil {
		var pathErr *registry.InvalidPathError
		if errors.As(err, &pathErr) {
			result.add(IssueInvalidPath, NeedsDecision, root, "%s", pathErr.Error())
		}
		return result, err
	}
	result.Project = &p
	s.publisher.Emit(events.KindRegistryChanged, events.ReasonProjectRegistered,
		events.EventData{Name: p.Name, ID: p.ID, Path: p.Root}, p)

	if err := s.validateInto(&result, p.Root); err != nil {
		return result, err
	}
	return result, nil
}

// Unregister removes a project from the registry. Its files are untouched.
func (s *Service) Unregister(id string) error {
	if err := s.registry.Unregister(id); err != nil {
		return err
	}
	s.publisher.Emit(events.KindRegistryChanged, events.ReasonProjectUnregistered, events.EventData{ID: id}, nil)
	return nil
}

// Select makes a project the current one.
func (s *Service) Select(id string) (*registry.Project, error) {
	if err := s.registry.Select(id); err != nil {
		return nil, err
	}
	p, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	s.publisher.Emit(events.KindRegistryChanged, events.ReasonProjectSelected,
		events.EventData{Name: p.Name, ID: p.ID, Path: p.Root}, *p)
	return p, nil
}

// Current returns the selected project, or nil when none is selected.
func (s *Service) Current() (*registry.Project, error) {
	return s.registry.LastSelected()
}

// Rename changes a project's display name.
func (s *Service) Rename(id, name string) error {
	if err := s.registry.Rename(id, name); err != nil {
		return err
	}
	s.publisher.Emit(events.KindRegistryChanged, events.ReasonProjectRenamed, events.EventData{ID: id, Name: name}, nil)
	return nil
}

// Check validates a project's structure without touching its files.
func (s *Service) Check(id string) (Result, error) {
	p, err := s.registry.Get(id)
	if err != nil {
		return Result{}, err
	}
	result := Result{Project: p}
	result.addRegistryWarnings(s.registry.Warnings())
	if err := s.validateInto(&result, p.Root); err != nil {
		return result, err
	}
	if s.catalog != nil {
		result.addUnresolved(s.catalog.Current())
	}
	return result, nil
}

// Repair creates the missing entries of a project. Only auto-resolvable
// issues are fixed: a missing project root and type conflicts are left to
// the user and reported in the result.
func (s *Service) Repair(id string) (Result, error) {
	p, err := s.registry.Get(id)
	if err != nil {
		return Result{}, err
	}
	result := Result{Project: p}

	report, err := s.structure.Validate(p.Root)
	if err != nil {
		s.addStructureError(&result, p.Root, err)
		s.emitReport(p.Root, result)
		return result, nil
	}
	if report.RootMissing {
		result.addReport(report)
		s.emitReport(p.Root, result)
		return result, nil
	}

	created, ensureErr := s.structure.Ensure(p.Root)
	result.Created = created
	s.emitRepair(p.Root, created, ensureErr)

	var conflict *structure.StructureConflictError
	if ensureErr != nil && !errors.As(ensureErr, &conflict) {
		return result, ensureErr
	}

	after, err := s.structure.Validate(p.Root)
	if err != nil {
		s.addStructureError(&result, p.Root, err)
		return result, nil
	}
	result.addReport(after)
	return result, nil
}

// LoadSettings loads the settings document of a project.
func (s *Service) LoadSettings(id string) (*settings.Settings, error) {
	p, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return s.settings.Load(p.Root)
}

// SaveSettings merges st into the settings document of a project.
func (s *Service) SaveSettings(id string, st *settings.Settings) error {
	p, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if filepath.Clean(st.Root()) != filepath.Clean(p.Root) {
		return fmt.Errorf("settings belong to %s, not to project %s at %s", st.Root(), p.ID, p.Root)
	}
	return s.settings.Save(st)
}

func (s *Service) validateInto(result *Result, root string) error {
	report, err := s.structure.Validate(root)
	if err != nil {
		var conflict *structure.StructureConflictError
		if !errors.As(err, &conflict) {
			return err
		}
		s.addStructureError(result, root, err)
		s.emitReport(root, *result)
		return nil
	}
	result.addReport(report)
	s.emitReport(root, *result)
	return nil
}

func (s *Service) addStructureError(result *Result, root string, err error) {
	var conflict *structure.StructureConflictError
	if errors.As(err, &conflict) {
		result.add(IssueStructureConflict, NeedsDecision, conflict.Path, "%s", conflict.Error())
		return
	}
	result.add(IssueInvalidPath, NeedsDecision, root, "%s", err.Error())
}

func (s *Service) emitReport(root string, result Result) {
	reason := events.ReasonStructureValid
	blocking := 0
	for _, i := range result.Issues {
		if i.Disposition != Informational {
			blocking++
		}
	}
	if blocking > 0 {
		reason = events.ReasonStructureInvalid
		logging.Info("Project", "Structure check of %s: %s", root, result.Summary())
	}
	s.publisher.Emit(events.KindStructureValidation, reason, events.EventData{Path: root, Count: blocking}, result)
}

func (s *Service) emitRepair(root string, created []structure.Entry, err error) {
	if err != nil {
		s.publisher.Emit(events.KindStructureValidation, events.ReasonStructureConflict,
			events.EventData{Path: root, Count: len(created), Error: err.Error()}, created)
		return
	}
	if len(created) > 0 {
		s.publisher.Emit(events.KindStructureValidation, events.ReasonStructureRepaired,
			events.EventData{Path: root, Count: len(created)}, created)
	}
}
