package domain

import (
	"fmt"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// Service is one billable service delivered during a visit
type Service string

const (
	ServiceConsultation      Service = "consultation"
	ServiceInitialConsult    Service = "initial_consult"
	ServiceMedicationConsult Service = "medication_consult"
	ServiceAcupuncture       Service = "acupuncture"
	ServiceChuna             Service = "chuna"
	ServiceCupping           Service = "cupping"
	ServiceMoxa              Service = "moxa"
	ServiceHerbalMedicine    Service = "herbal_medicine"
	ServiceUltrasound        Service = "ultrasound"
)

// VisitType distinguishes a first visit from a follow-up
type VisitType string

const (
	VisitInitial  VisitType = "initial"
	VisitFollowUp VisitType = "follow_up"
)

// RecordStatus defines the status of a treatment record
type RecordStatus string

const (
	RecordInProgress RecordStatus = "in_progress"
	RecordCompleted  RecordStatus = "completed"
)

// TreatmentRecord is one patient visit: the services delivered and the
// timeline of the patient's movement through the clinic.
type TreatmentRecord struct {
	ID            types.ID     `json:"id"`
	PatientID     int64        `json:"patient_id"`
	TreatmentDate time.Time    `json:"treatment_date"`
	DoctorName    string       `json:"doctor_name,omitempty"`
	TreatmentRoom string       `json:"treatment_room,omitempty"`
	VisitType     VisitType    `json:"visit_type"`
	Services      []Service    `json:"services"`
	Status        RecordStatus `json:"status"`
	Memo          string       `json:"memo,omitempty"`

	Timeline []TimelineEvent `json:"timeline,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTreatmentRecord opens a record for a visit
func NewTreatmentRecord(patientID int64, date time.Time, visitType VisitType) (*TreatmentRecord, error) {
	if patientID == 0 {
		return nil, fmt.Errorf("patient is required")
	}
	if date.IsZero() {
		return nil, fmt.Errorf("treatment date is required")
	}
	if visitType == "" {
		visitType = VisitFollowUp
	}

	now := time.Now()
	return &TreatmentRecord{
		ID:            types.NewID(),
		PatientID:     patientID,
		TreatmentDate: date,
		VisitType:     visitType,
		Services:      []Service{},
		Status:        RecordInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AddService records a delivered service. Adding the same service twice is
// allowed, a visit can include two acupuncture sessions.
func (t *TreatmentRecord) AddService(service Service) error {
	if t.Status == RecordCompleted {
		return fmt.Errorf("record is already completed")
	}
	if service == "" {
		return fmt.Errorf("service is required")
	}

	t.Services = append(t.Services, service)
	t.UpdatedAt = time.Now()
	return nil
}

// HasService reports whether a service was delivered during the visit
func (t *TreatmentRecord) HasService(service Service) bool {
	for _, s := range t.Services {
		if s == service {
			return true
		}
	}
	return false
}

// Complete closes the record. A completed record keeps accepting nothing.
func (t *TreatmentRecord) Complete() error {
	if t.Status == RecordCompleted {
		return fmt.Errorf("record is already completed")
	}

	t.Status = RecordCompleted
	t.UpdatedAt = time.Now()
	return nil
}
