// Package events carries plain data notifications from the core services to
// whoever is presenting them.
//
// Four kinds of event exist: registry-changed, structure-validation-result,
// catalog-updated and launch-outcome. Services raise them through the
// Publisher interface after the triggering call has completed; a Bus fans
// them out to subscribers.
//
// Usage:
//
//	bus := events.NewBus()
//	ch, cancel := bus.Subscribe(16)
//	defer cancel()
//
//	bus.Emit(events.KindCatalogUpdated, events.ReasonCatalogScanned,
//		events.EventData{Count: 12}, cat)
//
// Delivery is non-blocking. A subscriber that does not keep up misses events
// rather than stalling the publisher; each drop is logged as a warning.
package events
