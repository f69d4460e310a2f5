package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dahanmed/careops/internal/shared/errors"
	"github.com/dahanmed/careops/internal/shared/types"
	"github.com/dahanmed/careops/internal/treatment/domain"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL treatment record repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save saves a new treatment record with its timeline
func (r *PostgresRepository) Save(ctx context.Context, record *domain.TreatmentRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	servicesJSON, err := json.Marshal(record.Services)
	if err != nil {
		return errors.Wrap(err, "failed to marshal services")
	}

	query := `
		INSERT INTO treatment_records (
			id, patient_id, treatment_date, doctor_name, treatment_room,
			visit_type, services, status, memo, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		record.ID, record.PatientID, record.TreatmentDate, record.DoctorName, record.TreatmentRoom,
		record.VisitType, servicesJSON, record.Status, record.Memo, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save treatment record")
	}

	for i := range record.Timeline {
		if err := saveTimelineEvent(ctx, tx, &record.Timeline[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByID finds a treatment record by ID, timeline included
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.TreatmentRecord, error) {
	query := `
		SELECT id, patient_id, treatment_date, doctor_name, treatment_room,
			visit_type, services, status, memo, created_at, updated_at
		FROM treatment_records
		WHERE id = $1`

	record := &domain.TreatmentRecord{}
	var servicesJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.PatientID, &record.TreatmentDate, &record.DoctorName, &record.TreatmentRoom,
		&record.VisitType, &servicesJSON, &record.Status, &record.Memo, &record.CreatedAt, &record.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("treatment record", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find treatment record")
	}

	if err := json.Unmarshal(servicesJSON, &record.Services); err != nil {
		record.Services = []domain.Service{}
	}

	timeline, err := r.getTimeline(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Timeline = timeline

	return record, nil
}

// Update updates an existing treatment record
func (r *PostgresRepository) Update(ctx context.Context, record *domain.TreatmentRecord) error {
	servicesJSON, err := json.Marshal(record.Services)
	if err != nil {
		return errors.Wrap(err, "failed to marshal services")
	}

	query := `
		UPDATE treatment_records SET
			doctor_name = $2, treatment_room = $3, visit_type = $4,
			services = $5, status = $6, memo = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		record.ID, record.DoctorName, record.TreatmentRoom, record.VisitType,
		servicesJSON, record.Status, record.Memo, record.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update treatment record")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("treatment record", record.ID.String())
	}

	return nil
}

// AddTimelineEvent persists one appended timeline step
func (r *PostgresRepository) AddTimelineEvent(ctx context.Context, event *domain.TimelineEvent) error {
	query := `
		INSERT INTO timeline_events (
			id, treatment_record_id, event_type, occurred_at, location, staff_name, memo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.TreatmentRecordID, event.EventType, event.OccurredAt,
		event.Location, event.StaffName, event.Memo, event.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add timeline event")
	}

	return nil
}

func saveTimelineEvent(ctx context.Context, tx pgx.Tx, event *domain.TimelineEvent) error {
	query := `
		INSERT INTO timeline_events (
			id, treatment_record_id, event_type, occurred_at, location, staff_name, memo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		event.ID, event.TreatmentRecordID, event.EventType, event.OccurredAt,
		event.Location, event.StaffName, event.Memo, event.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save timeline event")
	}

	return nil
}

func (r *PostgresRepository) getTimeline(ctx context.Context, recordID types.ID) ([]domain.TimelineEvent, error) {
	query := `
		SELECT id, treatment_record_id, event_type, occurred_at, location, staff_name, memo, created_at
		FROM timeline_events
		WHERE treatment_record_id = $1
		ORDER BY occurred_at, created_at`

	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get timeline")
	}
	defer rows.Close()

	var timeline []domain.TimelineEvent
	for rows.Next() {
		var e domain.TimelineEvent
		err := rows.Scan(
			&e.ID, &e.TreatmentRecordID, &e.EventType, &e.OccurredAt,
			&e.Location, &e.StaffName, &e.Memo, &e.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan timeline event")
		}
		timeline = append(timeline, e)
	}

	return timeline, nil
}

// ListByPatient lists a patient's treatment records, newest first, without
// timelines
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID int64) ([]domain.TreatmentRecord, error) {
	query := `
		SELECT id, patient_id, treatment_date, doctor_name, treatment_room,
			visit_type, services, status, memo, created_at, updated_at
		FROM treatment_records
		WHERE patient_id = $1
		ORDER BY treatment_date DESC, created_at DESC`

	return r.queryRecords(ctx, query, patientID)
}

// ListForDate lists all treatment records for one day
func (r *PostgresRepository) ListForDate(ctx context.Context, date time.Time) ([]domain.TreatmentRecord, error) {
	query := `
		SELECT id, patient_id, treatment_date, doctor_name, treatment_room,
			visit_type, services, status, memo, created_at, updated_at
		FROM treatment_records
		WHERE treatment_date = $1
		ORDER BY created_at`

	return r.queryRecords(ctx, query, date)
}

func (r *PostgresRepository) queryRecords(ctx context.Context, query string, args ...any) ([]domain.TreatmentRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list treatment records")
	}
	defer rows.Close()

	var records []domain.TreatmentRecord
	for rows.Next() {
		var record domain.TreatmentRecord
		var servicesJSON []byte
		err := rows.Scan(
			&record.ID, &record.PatientID, &record.TreatmentDate, &record.DoctorName, &record.TreatmentRoom,
			&record.VisitType, &servicesJSON, &record.Status, &record.Memo, &record.CreatedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan treatment record")
		}
		if err := json.Unmarshal(servicesJSON, &record.Services); err != nil {
			record.Services = []domain.Service{}
		}
		records = append(records, record)
	}

	return records, nil
}
