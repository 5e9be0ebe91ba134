package events

import (
	"context"
	"log"
	"sync"
	"time"

	"resume-pricing-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventPricingPublished is emitted after a successful retrieval is published
	EventPricingPublished EventType = "pricing.published"
	// EventPricingFailed is emitted when a retrieval fails
	EventPricingFailed EventType = "pricing.failed"
	// EventCurrencyChanged is emitted when the requested currency changes
	EventCurrencyChanged EventType = "pricing.currency_changed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// PricingData carries the state that was published.
type PricingData struct {
	State *models.PricingState
}

// CurrencyChangedData describes a requested currency change.
type CurrencyChangedData struct {
	From models.Currency
	To   models.Currency
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing. A nil Manager is
// valid and drops every event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	wg       sync.WaitGroup
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so the publisher never blocks on them.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data any) {
	if m == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	handlers := m.handlers[eventType]
	if !m.enabled || len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		m.wg.Add(1)
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(ctx, event); err != nil {
				log.Printf("event handler %s: %v", eventType, err)
			}
		}(handler)
	}
}

// PublishPricing publishes a published or failed pricing event.
func (m *Manager) PublishPricing(ctx context.Context, eventType EventType, state *models.PricingState) {
	m.Publish(ctx, eventType, PricingData{State: state})
}

// PublishCurrencyChanged publishes a currency change event.
func (m *Manager) PublishCurrencyChanged(ctx context.Context, from, to models.Currency) {
	m.Publish(ctx, EventCurrencyChanged, CurrencyChangedData{From: from, To: to})
}

// Shutdown stops delivery and waits for running handlers to return.
func (m *Manager) Shutdown() {
	if m == nil {
		return
	}

	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}
