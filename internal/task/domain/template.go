package domain

import (
	"strings"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// TaskTemplate turns a dispensed service into a task. Templates may contain
// the {patient_name} placeholder.
type TaskTemplate struct {
	ID                  types.ID `json:"id"`
	Name                string   `json:"name"`
	TriggerService      string   `json:"trigger_service"`
	TaskType            string   `json:"task_type"`
	TitleTemplate       string   `json:"title_template"`
	DescriptionTemplate string   `json:"description_template,omitempty"`
	DefaultAssignedRole string   `json:"default_assigned_role,omitempty"`
	DefaultPriority     Priority `json:"default_priority"`
	DueDaysOffset       int      `json:"due_days_offset"`
	IsActive            bool     `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// ServiceOccurrence is the generator's view of a dispensed service
type ServiceOccurrence struct {
	Service           string
	PatientID         int64
	PatientName       string
	OccurredOn        time.Time
	TreatmentRecordID *types.ID
}

// GenerateFromService produces at most one task per matching template for
// one service occurrence. Like rule evaluation it is pure in its inputs;
// deduplication across redelivered events is the caller's concern.
func GenerateFromService(occ ServiceOccurrence, templates []TaskTemplate) []Task {
	var tasks []Task
	now := time.Now()

	for _, tpl := range templates {
		if !tpl.IsActive || tpl.TriggerService != occ.Service {
			continue
		}

		due := occ.OccurredOn.AddDate(0, 0, tpl.DueDaysOffset)
		tasks = append(tasks, Task{
			ID:                types.NewID(),
			PatientID:         occ.PatientID,
			PatientName:       occ.PatientName,
			TreatmentRecordID: occ.TreatmentRecordID,
			TaskType:          tpl.TaskType,
			Title:             renderTemplate(tpl.TitleTemplate, occ.PatientName),
			Description:       renderTemplate(tpl.DescriptionTemplate, occ.PatientName),
			Status:            TaskStatusPending,
			Priority:          tpl.DefaultPriority,
			AssignedRole:      tpl.DefaultAssignedRole,
			DueDate:           &due,
			TriggerService:    tpl.TriggerService,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	return tasks
}

func renderTemplate(template, patientName string) string {
	return strings.ReplaceAll(template, "{patient_name}", patientName)
}
