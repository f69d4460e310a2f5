package domain

import (
	"context"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// Repository persists tasks
type Repository interface {
	Save(ctx context.Context, task *Task) error
	SaveAll(ctx context.Context, tasks []Task) error
	FindByID(ctx context.Context, id types.ID) (*Task, error)
	Update(ctx context.Context, task *Task) error
	ListForDate(ctx context.Context, date time.Time) ([]Task, error)
	ListByAssignee(ctx context.Context, assignee string) ([]Task, error)
	ListByPatient(ctx context.Context, patientID int64) ([]Task, error)
	ListByTreatmentRecord(ctx context.Context, recordID types.ID) ([]Task, error)
}

// TemplateRepository reads task templates
type TemplateRepository interface {
	ListActive(ctx context.Context) ([]TaskTemplate, error)
	ListActiveByService(ctx context.Context, service string) ([]TaskTemplate, error)
}
