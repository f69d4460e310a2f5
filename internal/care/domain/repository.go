package domain

import (
	"context"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// ItemRepository persists care items
type ItemRepository interface {
	Save(ctx context.Context, item *CareItem) error
	SaveAll(ctx context.Context, items []CareItem) error
	FindByID(ctx context.Context, id types.ID) (*CareItem, error)
	Update(ctx context.Context, item *CareItem) error
	ListForDate(ctx context.Context, date time.Time) ([]CareItem, error)
	ListByPatient(ctx context.Context, patientID int64) ([]CareItem, error)
}

// RuleRepository reads care rule templates
type RuleRepository interface {
	ListActive(ctx context.Context) ([]CareRule, error)
	ListActiveByTrigger(ctx context.Context, trigger string) ([]CareRule, error)
}

// StatusRepository persists per-patient treatment status
type StatusRepository interface {
	FindByPatient(ctx context.Context, patientID int64) (*PatientTreatmentStatus, error)
	Upsert(ctx context.Context, status *PatientTreatmentStatus) error
}
