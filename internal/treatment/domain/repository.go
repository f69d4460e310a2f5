package domain

import (
	"context"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// Repository persists treatment records and their timelines
type Repository interface {
	Save(ctx context.Context, record *TreatmentRecord) error
	FindByID(ctx context.Context, id types.ID) (*TreatmentRecord, error)
	Update(ctx context.Context, record *TreatmentRecord) error
	AddTimelineEvent(ctx context.Context, event *TimelineEvent) error
	ListByPatient(ctx context.Context, patientID int64) ([]TreatmentRecord, error)
	ListForDate(ctx context.Context, date time.Time) ([]TreatmentRecord, error)
}
