package domain

import (
	"fmt"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// CareType defines the kind of follow-up care an item represents
type CareType string

const (
	CareHappyCallDelivery   CareType = "happy_call_delivery"
	CareHappyCallMedication CareType = "happy_call_medication"
	CareTreatmentFollowup   CareType = "treatment_followup"
	CareTreatmentClosure    CareType = "treatment_closure"
	CarePeriodicMessage     CareType = "periodic_message"
	CareReservationReminder CareType = "reservation_reminder"
	CareCustom              CareType = "custom"
)

// CareStatus defines the status of a care item
type CareStatus string

const (
	CareStatusPending   CareStatus = "pending"
	CareStatusCompleted CareStatus = "completed"
	CareStatusSkipped   CareStatus = "skipped"
)

// TriggerType records how a care item came to exist
type TriggerType string

const (
	TriggerAuto   TriggerType = "auto"
	TriggerManual TriggerType = "manual"
)

// CareItem is a single scheduled follow-up action for a patient, such as a
// happy call after a herbal medicine delivery. Status moves one way:
// pending to completed or skipped, both terminal.
type CareItem struct {
	ID                types.ID  `json:"id"`
	PatientID         int64     `json:"patient_id"`
	PatientName       string    `json:"patient_name,omitempty"`
	TreatmentRecordID *types.ID `json:"treatment_record_id,omitempty"`

	CareType    CareType   `json:"care_type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      CareStatus `json:"status"`

	ScheduledDate time.Time  `json:"scheduled_date"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	CompletedBy   string     `json:"completed_by,omitempty"`
	Result        string     `json:"result,omitempty"`

	TriggerType   TriggerType `json:"trigger_type"`
	TriggerSource string      `json:"trigger_source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCareItem creates a manually entered care item
func NewCareItem(patientID int64, careType CareType, title string, scheduledDate time.Time) (*CareItem, error) {
	if patientID == 0 {
		return nil, fmt.Errorf("patient is required")
	}
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if scheduledDate.IsZero() {
		return nil, fmt.Errorf("scheduled date is required")
	}

	now := time.Now()
	return &CareItem{
		ID:            types.NewID(),
		PatientID:     patientID,
		CareType:      careType,
		Title:         title,
		Status:        CareStatusPending,
		ScheduledDate: scheduledDate,
		TriggerType:   TriggerManual,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Complete marks the item done with an outcome note
func (c *CareItem) Complete(by, result string) error {
	if c.Status != CareStatusPending {
		return fmt.Errorf("care item is already %s", c.Status)
	}

	now := time.Now()
	c.Status = CareStatusCompleted
	c.CompletedDate = &now
	c.CompletedBy = by
	c.Result = result
	c.UpdatedAt = now

	return nil
}

// Skip marks the item as intentionally not done
func (c *CareItem) Skip(by, reason string) error {
	if c.Status != CareStatusPending {
		return fmt.Errorf("care item is already %s", c.Status)
	}

	now := time.Now()
	c.Status = CareStatusSkipped
	c.CompletedDate = &now
	c.CompletedBy = by
	c.Result = reason
	c.UpdatedAt = now

	return nil
}

// Reschedule moves a pending item to a new date
func (c *CareItem) Reschedule(date time.Time) error {
	if c.Status != CareStatusPending {
		return fmt.Errorf("cannot reschedule a %s care item", c.Status)
	}
	if date.IsZero() {
		return fmt.Errorf("scheduled date is required")
	}

	c.ScheduledDate = date
	c.UpdatedAt = time.Now()

	return nil
}

// IsTerminal reports whether the item can no longer change status
func (c *CareItem) IsTerminal() bool {
	return c.Status == CareStatusCompleted || c.Status == CareStatusSkipped
}
