package care

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/care/domain"
	"github.com/dahanmed/careops/internal/shared/events"
	"github.com/dahanmed/careops/internal/shared/metrics"
)

// Subscriber listens to service events and materializes care items from the
// active rules. Delivery is at least once: a redelivered event creates the
// same items again, which the care list surfaces as duplicates for staff to
// skip rather than silently dropping.
type Subscriber struct {
	items domain.ItemRepository
	rules domain.RuleRepository
	bus   events.Bus
	log   zerolog.Logger
}

// NewSubscriber creates a new care trigger subscriber
func NewSubscriber(items domain.ItemRepository, rules domain.RuleRepository, bus events.Bus, log zerolog.Logger) *Subscriber {
	return &Subscriber{items: items, rules: rules, bus: bus, log: log}
}

// Start subscribes to all service events
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, "service.*", "care-trigger-subscriber", s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to service events: %w", err)
	}
	return nil
}

// handleEvent evaluates the rule set against one service event
func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	trigger := strings.TrimPrefix(event.Type, events.TypeServicePrefix)

	rules, err := s.rules.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return fmt.Errorf("failed to load rules for %s: %w", trigger, err)
	}

	items := domain.Evaluate(domain.TriggerOccurrence{
		Trigger:     trigger,
		PatientID:   event.PatientID,
		PatientName: event.PatientName,
		OccurredOn:  event.Timestamp,
	}, rules)

	if len(items) == 0 {
		return nil
	}

	if err := s.items.SaveAll(ctx, items); err != nil {
		return fmt.Errorf("failed to save care items for %s: %w", trigger, err)
	}

	for _, item := range items {
		metrics.RecordCareItemCreated(string(item.CareType), string(item.TriggerType))
	}

	s.log.Info().
		Str("trigger", trigger).
		Int64("patient_id", event.PatientID).
		Int("items", len(items)).
		Msg("care items created from service event")

	return nil
}
