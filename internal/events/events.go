package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventRequestAccepted   = "request_accepted"
	EventRequestDeclined   = "request_declined"
	EventRequestCancelled  = "request_cancelled"
	EventQuoteSubmitted    = "quote_submitted"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingCompleted  = "booking_completed"
	EventBackjobReschedule = "backjob_reschedule_requested"
	EventActionFailed      = "action_failed"
)

// JobEventPayload is the minimal job snapshot for event consumers
// (notifiers, metrics, ledger).
type JobEventPayload struct {
	JobKind    string `json:"job_kind"`
	JobID      int64  `json:"job_id"`
	Status     string `json:"status"`
	Summary    string `json:"summary,omitempty"`
	Action     string `json:"action,omitempty"`
	Message    string `json:"message,omitempty"`
	Amount     string `json:"amount,omitempty"`
	QuoteTotal string `json:"quote_total,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// and every handler runs even when an earlier one errors; the first handler
// error is returned so publishers can log it.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}

// DecodeJobPayload unmarshals a job event payload.
func DecodeJobPayload(event *Event) (JobEventPayload, error) {
	var payload JobEventPayload
	err := json.Unmarshal(event.Payload, &payload)
	return payload, err
}
