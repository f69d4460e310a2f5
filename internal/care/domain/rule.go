package domain

import (
	"strings"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// Trigger events care rules can react to. These are the event types on the
// bus with the "service." prefix stripped.
const (
	TriggerInitialVisit   = "initial_visit"
	TriggerHerbalDelivery = "herbal_delivery"
	TriggerVisitCount10   = "visit_count_10"
)

// CareRule is a template that turns a trigger event into a scheduled care
// item. Templates may contain the {patient_name} placeholder.
type CareRule struct {
	ID                  types.ID `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	TriggerEvent        string   `json:"trigger_event"`
	CareType            CareType `json:"care_type"`
	TitleTemplate       string   `json:"title_template"`
	DescriptionTemplate string   `json:"description_template,omitempty"`
	DaysOffset          int      `json:"days_offset"`
	IsActive            bool     `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// TriggerOccurrence is the evaluator's view of a service event
type TriggerOccurrence struct {
	Trigger           string
	PatientID         int64
	PatientName       string
	OccurredOn        time.Time
	TreatmentRecordID *types.ID
}

// Evaluate matches a trigger occurrence against a rule set and materializes
// one pending care item per matching rule. It is pure in its inputs: the
// same occurrence and rules always yield the same items (up to generated
// IDs and timestamps). Matching is exact on the trigger name; rule order is
// preserved in the result. Deduplication against previously created items
// is the caller's concern.
func Evaluate(occ TriggerOccurrence, rules []CareRule) []CareItem {
	var items []CareItem
	now := time.Now()

	for _, rule := range rules {
		if !rule.IsActive || rule.TriggerEvent != occ.Trigger {
			continue
		}

		items = append(items, CareItem{
			ID:                types.NewID(),
			PatientID:         occ.PatientID,
			PatientName:       occ.PatientName,
			TreatmentRecordID: occ.TreatmentRecordID,
			CareType:          rule.CareType,
			Title:             renderTemplate(rule.TitleTemplate, occ.PatientName),
			Description:       renderTemplate(rule.DescriptionTemplate, occ.PatientName),
			Status:            CareStatusPending,
			ScheduledDate:     occ.OccurredOn.AddDate(0, 0, rule.DaysOffset),
			TriggerType:       TriggerAuto,
			TriggerSource:     rule.TriggerEvent,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	return items
}

func renderTemplate(template, patientName string) string {
	return strings.ReplaceAll(template, "{patient_name}", patientName)
}

// DefaultRules is the built-in rule set, matching the seed migration. A
// herbal delivery yields both the delivery happy call and the medication
// happy call a week later; the tenth visit yields exactly one closure
// consultation.
func DefaultRules() []CareRule {
	return []CareRule{
		{
			ID:                  types.NewID(),
			Name:                "delivery happy call",
			TriggerEvent:        TriggerHerbalDelivery,
			CareType:            CareHappyCallDelivery,
			TitleTemplate:       "{patient_name} delivery happy call",
			DescriptionTemplate: "Confirm the package arrived and explain how to take the medicine.",
			DaysOffset:          0,
			IsActive:            true,
		},
		{
			ID:                  types.NewID(),
			Name:                "medication happy call",
			TriggerEvent:        TriggerHerbalDelivery,
			CareType:            CareHappyCallMedication,
			TitleTemplate:       "{patient_name} medication happy call",
			DescriptionTemplate: "Check compliance and any reactions one week into the course.",
			DaysOffset:          7,
			IsActive:            true,
		},
		{
			ID:                  types.NewID(),
			Name:                "closure consultation",
			TriggerEvent:        TriggerVisitCount10,
			CareType:            CareTreatmentClosure,
			TitleTemplate:       "{patient_name} closure consultation",
			DescriptionTemplate: "Review progress and discuss whether to close the treatment course.",
			DaysOffset:          0,
			IsActive:            true,
		},
		{
			ID:                  types.NewID(),
			Name:                "initial visit followup",
			TriggerEvent:        TriggerInitialVisit,
			CareType:            CareTreatmentFollowup,
			TitleTemplate:       "{patient_name} first-visit follow-up",
			DescriptionTemplate: "Ask how the patient felt after the first treatment.",
			DaysOffset:          1,
			IsActive:            true,
		},
	}
}
