package events

import (
	"sync"
	"sync/atomic"
	"time"

	"sotugyo/pkg/logging"
)

// Publisher is the narrow interface services use to raise events.
type Publisher interface {
	Emit(kind Kind, reason EventReason, data EventData, payload interface{})
}

// Bus fans events out to subscribers. Delivery never blocks the publisher:
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]chan Event
	nextID    uint64
	templates *MessageTemplateEngine
	now       func() time.Time
	dropped   atomic.Uint64
}

// NewBus creates an event bus with the default message templates.
func NewBus() *Bus {
	return &Bus{
		subs:      make(map[uint64]chan Event),
		templates: NewMessageTemplateEngine(),
		now:       time.Now,
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel function unregisters it and closes the channel; it is safe
// to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}
	if ev.Type == "" {
		ev.Type = getEventType(ev.Reason)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			logging.Warn("Events", "Dropped %s event (%s): subscriber buffer full", ev.Kind, ev.Reason)
		}
	}
}

// Emit renders the message for reason and publishes the event.
func (b *Bus) Emit(kind Kind, reason EventReason, data EventData, payload interface{}) {
	b.mu.RLock()
	message := b.templates.Render(reason, data)
	b.mu.RUnlock()
	logging.Debug("Events", "Emitting %s event: reason=%s, message=%s", kind, reason, message)
	b.Publish(Event{
		Kind:    kind,
		Reason:  reason,
		Type:    getEventType(reason),
		Message: message,
		Payload: payload,
	})
}

// SetTemplate allows customizing the message template for a specific event reason.
func (b *Bus) SetTemplate(reason EventReason, template string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates.SetTemplate(reason, template)
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Emit implements Publisher.
func (NopPublisher) Emit(Kind, EventReason, EventData, interface{}) {}
