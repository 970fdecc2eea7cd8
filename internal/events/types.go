package events

import (
	"time"
)

// Kind groups events by the part of the core that raised them.
type Kind string

const (
	// KindRegistryChanged is raised after the project registry was persisted.
	KindRegistryChanged Kind = "registry-changed"

	// KindStructureValidation carries the result of a structure check or repair.
	KindStructureValidation Kind = "structure-validation-result"

	// KindCatalogUpdated is raised after a package scan completed.
	KindCatalogUpdated Kind = "catalog-updated"

	// KindLaunchOutcome is raised after a tool launch attempt.
	KindLaunchOutcome Kind = "launch-outcome"
)

// EventType represents the severity of an event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

// Registry event reasons
const (
	ReasonProjectRegistered   EventReason = "ProjectRegistered"
	ReasonProjectUnregistered EventReason = "ProjectUnregistered"
	ReasonProjectSelected     EventReason = "ProjectSelected"
	ReasonProjectRenamed      EventReason = "ProjectRenamed"
)

// Structure event reasons
const (
	// ReasonStructureValid indicates a project root matches its policy.
	ReasonStructureValid EventReason = "StructureValid"

	// ReasonStructureInvalid indicates missing entries or conflicts were found.
	ReasonStructureInvalid EventReason = "StructureInvalid"

	// ReasonStructureRepaired indicates missing entries were created.
	ReasonStructureRepaired EventReason = "StructureRepaired"

	// ReasonStructureConflict indicates a repair stopped at a type mismatch.
	ReasonStructureConflict EventReason = "StructureConflict"
)

// Catalog event reasons
const (
	// ReasonCatalogScanned indicates a scan finished.
	ReasonCatalogScanned EventReason = "CatalogScanned"

	// ReasonCatalogDiagnostics indicates a scan finished with diagnostics.
	ReasonCatalogDiagnostics EventReason = "CatalogDiagnostics"
)

// Launch event reasons
const (
	ReasonLaunchStarted  EventReason = "LaunchStarted"
	ReasonLaunchDegraded EventReason = "LaunchDegraded"
	ReasonLaunchFailed   EventReason = "LaunchFailed"
)

// EventData holds contextual information for event message templating.
type EventData struct {
	// Name is the project or package name involved in the event.
	Name string

	// ID is the project id, if any.
	ID string

	// Path is a filesystem path relevant to the event (project root, log file).
	Path string

	// Version is the package version for catalog and launch events.
	Version string

	// Count is a number relevant to the event (entries created, packages found).
	Count int

	// PID is the process id of a launched tool.
	PID int

	// Error contains error information for failure events.
	Error string
}

// Event is a plain data notification. Payload carries the typed result of the
// operation that raised it (a structure report, a launch outcome, ...).
type Event struct {
	Kind    Kind
	Reason  EventReason
	Type    EventType
	Message string
	Time    time.Time
	Payload interface{}
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonStructureInvalid,
		ReasonStructureConflict,
		ReasonCatalogDiagnostics,
		ReasonLaunchDegraded,
		ReasonLaunchFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
