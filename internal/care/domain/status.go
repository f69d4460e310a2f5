package domain

import (
	"fmt"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// TreatmentState defines where a patient is in their treatment course
type TreatmentState string

const (
	TreatmentActive    TreatmentState = "active"
	TreatmentPaused    TreatmentState = "paused"
	TreatmentCompleted TreatmentState = "completed"
	TreatmentLost      TreatmentState = "lost"
)

// ClosureType classifies how a treatment course ended
type ClosureType string

const (
	ClosureNatural        ClosureType = "natural"
	ClosurePlanned        ClosureType = "planned"
	ClosurePatientRequest ClosureType = "patient_request"
	ClosureLostContact    ClosureType = "lost_contact"
)

// ClosureVisitThreshold is the visit count at which a closure consultation
// is prompted.
const ClosureVisitThreshold = 10

// PatientTreatmentStatus tracks one patient's current treatment course:
// state, visit counting and how the course eventually closed.
type PatientTreatmentStatus struct {
	ID        types.ID       `json:"id"`
	PatientID int64          `json:"patient_id"`
	State     TreatmentState `json:"status"`

	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	TotalVisits       int        `json:"total_visits"`
	LastVisitDate     *time.Time `json:"last_visit_date,omitempty"`
	NextScheduledDate *time.Time `json:"next_scheduled_date,omitempty"`

	ClosureReason string      `json:"closure_reason,omitempty"`
	ClosureTyp    ClosureType `json:"closure_type,omitempty"`
	Notes         string      `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTreatmentStatus starts an active course for a patient
func NewTreatmentStatus(patientID int64, startDate time.Time) *PatientTreatmentStatus {
	now := time.Now()
	return &PatientTreatmentStatus{
		ID:        types.NewID(),
		PatientID: patientID,
		State:     TreatmentActive,
		StartDate: &startDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordVisit counts a visit and reports whether the count just reached the
// closure threshold. Visits on paused or closed courses still count but a
// closed course is not reopened.
func (s *PatientTreatmentStatus) RecordVisit(date time.Time) (reachedThreshold bool) {
	s.TotalVisits++
	s.LastVisitDate = &date
	s.UpdatedAt = time.Now()

	return s.TotalVisits == ClosureVisitThreshold
}

// Pause suspends an active course
func (s *PatientTreatmentStatus) Pause() error {
	if s.State != TreatmentActive {
		return fmt.Errorf("can only pause an active course, current state is %s", s.State)
	}

	s.State = TreatmentPaused
	s.UpdatedAt = time.Now()
	return nil
}

// Resume reactivates a paused course
func (s *PatientTreatmentStatus) Resume() error {
	if s.State != TreatmentPaused {
		return fmt.Errorf("can only resume a paused course, current state is %s", s.State)
	}

	s.State = TreatmentActive
	s.UpdatedAt = time.Now()
	return nil
}

// Close ends the course. Lost-contact closures land in the lost state, all
// others in completed. Closing is terminal.
func (s *PatientTreatmentStatus) Close(closureType ClosureType, reason string) error {
	if s.State == TreatmentCompleted || s.State == TreatmentLost {
		return fmt.Errorf("course is already closed")
	}

	switch closureType {
	case ClosureNatural, ClosurePlanned, ClosurePatientRequest:
		s.State = TreatmentCompleted
	case ClosureLostContact:
		s.State = TreatmentLost
	default:
		return fmt.Errorf("unknown closure type %q", closureType)
	}

	now := time.Now()
	s.EndDate = &now
	s.ClosureTyp = closureType
	s.ClosureReason = reason
	s.UpdatedAt = now

	return nil
}
