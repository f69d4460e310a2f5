package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/events"
	"github.com/dahanmed/careops/internal/shared/metrics"
	"github.com/dahanmed/careops/internal/task/domain"
)

// Subscriber listens to service events and generates staff tasks from the
// active templates. Delivery is at least once, same trade-off as the care
// trigger subscriber.
type Subscriber struct {
	repo      domain.Repository
	templates domain.TemplateRepository
	bus       events.Bus
	log       zerolog.Logger
}

// NewSubscriber creates a new task generation subscriber
func NewSubscriber(repo domain.Repository, templates domain.TemplateRepository, bus events.Bus, log zerolog.Logger) *Subscriber {
	return &Subscriber{repo: repo, templates: templates, bus: bus, log: log}
}

// Start subscribes to all service events
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, "service.*", "task-generation-subscriber", s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to service events: %w", err)
	}
	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	service := strings.TrimPrefix(event.Type, events.TypeServicePrefix)

	templates, err := s.templates.ListActiveByService(ctx, service)
	if err != nil {
		return fmt.Errorf("failed to load templates for %s: %w", service, err)
	}

	tasks := domain.GenerateFromService(domain.ServiceOccurrence{
		Service:     service,
		PatientID:   event.PatientID,
		PatientName: event.PatientName,
		OccurredOn:  event.Timestamp,
	}, templates)

	if len(tasks) == 0 {
		return nil
	}

	if err := s.repo.SaveAll(ctx, tasks); err != nil {
		return fmt.Errorf("failed to save tasks for %s: %w", service, err)
	}

	for range tasks {
		metrics.RecordTaskGenerated(service)
	}

	s.log.Info().
		Str("service", service).
		Int64("patient_id", event.PatientID).
		Int("tasks", len(tasks)).
		Msg("tasks generated from service event")

	return nil
}
