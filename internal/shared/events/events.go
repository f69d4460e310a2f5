package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service event types published by the EMR adapter and treatment module.
const (
	TypeInitialVisit   = "service.initial_visit"
	TypeHerbalDelivery = "service.herbal_delivery"
	TypeVisitCount10   = "service.visit_count_10"
	TypeServicePrefix  = "service."
)

// Event represents a domain event
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	// Subject
	PatientID   int64  `json:"patient_id"`
	PatientName string `json:"patient_name,omitempty"`

	// Event data
	Data any `json:"data,omitempty"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, patientID int64, patientName string) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		Source:      source,
		Timestamp:   time.Now().UTC(),
		PatientID:   patientID,
		PatientName: patientName,
	}
}

// WithData attaches a payload to the event
func (e Event) WithData(data any) Event {
	e.Data = data
	return e
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event publishing and subscription
type Bus interface {
	// Publish publishes an event to the bus
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription to events matching a pattern
	Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health() error
}
