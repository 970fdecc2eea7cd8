package catalog

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"sotugyo/internal/events"
	"sotugyo/pkg/logging"
)

// Store holds the most recent catalog and refreshes it on demand. Readers
// always see a complete catalog; a refresh swaps in a new one atomically.
type Store struct {
	scanner   *Scanner
	publisher events.Publisher
	tools     ToolSource

	mu      sync.Mutex // serializes refreshes
	roots   []string
	current atomic.Pointer[Catalog]
}

// ToolSource supplies packages for executables registered by path. They are
// merged after every repository root, so a repository package with the same
// name and version wins.
type ToolSource interface {
	RegisteredPackages() ([]Package, error)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithToolSource adds registered tools to every refresh.
func WithToolSource(src ToolSource) StoreOption {
	return func(s *Store) { s.tools = src }
}

// NewStore creates a store over roots. The initial catalog is empty until
// Refresh is called.
func NewStore(scanner *Scanner, roots []string, publisher events.Publisher, opts ...StoreOption) *Store {
	if scanner == nil {
		scanner = NewScanner()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Store{
		scanner:   scanner,
		publisher: publisher,
		roots:     append([]string(nil), roots...),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(Empty())
	return s
}

// Roots returns the repository roots the store scans.
func (s *Store) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roots...)
}

// SetRoots replaces the repository roots used by the next Refresh.
func (s *Store) SetRoots(roots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = append([]string(nil), roots...)
}

// Current returns the latest catalog. It is never nil.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Lookup finds a package in the latest catalog.
func (s *Store) Lookup(name, version string) (*Package, bool) {
	return s.Current().Lookup(name, version)
}

// Refresh rescans all roots, replaces the current catalog and publishes a
// catalog-updated event.
func (s *Store) Refresh(ctx context.Context) *Catalog {
	s.mu.Lock()
	cat := s.scanner.Scan(ctx, s.roots)
	if s.tools != nil {
		pkgs, err := s.tools.RegisteredPackages()
		cat.addRegistered(pkgs, err)
	}
	s.current.Store(cat)
	s.mu.Unlock()

	diags := cat.Diagnostics()
	reason := events.ReasonCatalogScanned
	data := events.EventData{Count: cat.Len()}
	if len(diags) > 0 {
		reason = events.ReasonCatalogDiagnostics
		var msgs []string
		for _, d := range diags {
			msgs = append(msgs, d.String())
		}
		data.Error = strings.Join(msgs, "; ")
		logging.Warn("Catalog", "Scan finished with %d diagnostic(s)", len(diags))
	} else {
		logging.Info("Catalog", "Scan found %d package(s)", cat.Len())
	}
	s.publisher.Emit(events.KindCatalogUpdated, reason, data, cat)
	return cat
}

// Watch refreshes the store for every change reported by w until ctx is done
// or the change channel is closed.
func (s *Store) Watch(ctx context.Context, changes <-chan ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			logging.Debug("Catalog", "Rescanning after %s under %s", change.Operation, change.Root)
			s.Refresh(ctx)
		}
	}
}
