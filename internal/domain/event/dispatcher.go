package event

import (
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles ("*" for all)
	HandledEvents() []string
}

// EventDispatcher dispatches domain events to registered handlers.
// Dispatch is called concurrently from every worker, so handlers must be safe
// for concurrent use.
type EventDispatcher interface {
	// Dispatch sends an event to all registered handlers
	Dispatch(event DomainEvent)
	// Subscribe registers a handler for events
	Subscribe(handler EventHandler)
}

// InMemoryDispatcher calls handlers synchronously on the dispatching goroutine
type InMemoryDispatcher struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewInMemoryDispatcher creates a new InMemoryDispatcher.
// Handler errors are logged and otherwise ignored.
func NewInMemoryDispatcher(logger *zap.Logger) *InMemoryDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryDispatcher{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
	}
}

// Dispatch sends an event to all registered handlers
func (d *InMemoryDispatcher) Dispatch(event DomainEvent) {
	d.mu.RLock()
	named := d.handlers[event.EventName()]
	all := d.handlers["*"]
	handlers := make([]EventHandler, 0, len(named)+len(all))
	handlers = append(handlers, named...)
	handlers = append(handlers, all...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event", event.EventName()),
				zap.Error(err))
		}
	}
}

// Subscribe registers a handler for events
func (d *InMemoryDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, eventName := range handler.HandledEvents() {
		d.handlers[eventName] = append(d.handlers[eventName], handler)
	}
}

// NullDispatcher is a no-op dispatcher for when events are not needed
type NullDispatcher struct{}

// NewNullDispatcher creates a new NullDispatcher
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

// Dispatch does nothing
func (d *NullDispatcher) Dispatch(event DomainEvent) {}

// Subscribe does nothing
func (d *NullDispatcher) Subscribe(handler EventHandler) {}
