package infrastructure

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dahanmed/careops/internal/care/domain"
	"github.com/dahanmed/careops/internal/shared/errors"
	"github.com/dahanmed/careops/internal/shared/types"
)

// PostgresItemRepository implements domain.ItemRepository using PostgreSQL
type PostgresItemRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresItemRepository creates a new PostgreSQL care item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

const careItemColumns = `id, patient_id, treatment_record_id, care_type, title, description,
	status, scheduled_date, completed_date, completed_by, result,
	trigger_type, trigger_source, created_at, updated_at`

// Save saves a new care item
func (r *PostgresItemRepository) Save(ctx context.Context, item *domain.CareItem) error {
	query := `
		INSERT INTO care_items (
			id, patient_id, treatment_record_id, care_type, title, description,
			status, scheduled_date, completed_date, completed_by, result,
			trigger_type, trigger_source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		item.ID, item.PatientID, item.TreatmentRecordID, item.CareType, item.Title, item.Description,
		item.Status, item.ScheduledDate, item.CompletedDate, item.CompletedBy, item.Result,
		item.TriggerType, item.TriggerSource, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save care item")
	}

	return nil
}

// SaveAll saves a batch of care items in one transaction
func (r *PostgresItemRepository) SaveAll(ctx context.Context, items []domain.CareItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for i := range items {
		item := &items[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO care_items (
				id, patient_id, treatment_record_id, care_type, title, description,
				status, scheduled_date, completed_date, completed_by, result,
				trigger_type, trigger_source, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			item.ID, item.PatientID, item.TreatmentRecordID, item.CareType, item.Title, item.Description,
			item.Status, item.ScheduledDate, item.CompletedDate, item.CompletedBy, item.Result,
			item.TriggerType, item.TriggerSource, item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to save care item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByID finds a care item by ID
func (r *PostgresItemRepository) FindByID(ctx context.Context, id types.ID) (*domain.CareItem, error) {
	query := `SELECT ` + careItemColumns + ` FROM care_items WHERE id = $1`

	item := &domain.CareItem{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.PatientID, &item.TreatmentRecordID, &item.CareType, &item.Title, &item.Description,
		&item.Status, &item.ScheduledDate, &item.CompletedDate, &item.CompletedBy, &item.Result,
		&item.TriggerType, &item.TriggerSource, &item.CreatedAt, &item.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("care item", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find care item")
	}

	return item, nil
}

// Update updates an existing care item
func (r *PostgresItemRepository) Update(ctx context.Context, item *domain.CareItem) error {
	query := `
		UPDATE care_items SET
			title = $2, description = $3, status = $4, scheduled_date = $5,
			completed_date = $6, completed_by = $7, result = $8, updated_at = $9
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		item.ID, item.Title, item.Description, item.Status, item.ScheduledDate,
		item.CompletedDate, item.CompletedBy, item.Result, item.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update care item")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("care item", item.ID.String())
	}

	return nil
}

// ListForDate lists care items scheduled on or before a date that are still
// pending, plus anything scheduled exactly on the date
func (r *PostgresItemRepository) ListForDate(ctx context.Context, date time.Time) ([]domain.CareItem, error) {
	query := `
		SELECT ` + careItemColumns + `
		FROM care_items
		WHERE (scheduled_date = $1)
		   OR (scheduled_date < $1 AND status = 'pending')
		ORDER BY scheduled_date, created_at`

	return r.queryItems(ctx, query, date)
}

// ListByPatient lists all care items for a patient, newest first
func (r *PostgresItemRepository) ListByPatient(ctx context.Context, patientID int64) ([]domain.CareItem, error) {
	query := `
		SELECT ` + careItemColumns + `
		FROM care_items
		WHERE patient_id = $1
		ORDER BY scheduled_date DESC, created_at DESC`

	return r.queryItems(ctx, query, patientID)
}

func (r *PostgresItemRepository) queryItems(ctx context.Context, query string, args ...any) ([]domain.CareItem, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list care items")
	}
	defer rows.Close()

	var items []domain.CareItem
	for rows.Next() {
		var item domain.CareItem
		err := rows.Scan(
			&item.ID, &item.PatientID, &item.TreatmentRecordID, &item.CareType, &item.Title, &item.Description,
			&item.Status, &item.ScheduledDate, &item.CompletedDate, &item.CompletedBy, &item.Result,
			&item.TriggerType, &item.TriggerSource, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan care item")
		}
		items = append(items, item)
	}

	return items, nil
}

// PostgresRuleRepository implements domain.RuleRepository using PostgreSQL
type PostgresRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRuleRepository creates a new PostgreSQL care rule repository
func NewPostgresRuleRepository(pool *pgxpool.Pool) *PostgresRuleRepository {
	return &PostgresRuleRepository{pool: pool}
}

// ListActive lists all active care rules
func (r *PostgresRuleRepository) ListActive(ctx context.Context) ([]domain.CareRule, error) {
	return r.queryRules(ctx, `
		SELECT id, name, description, trigger_event, care_type,
			title_template, description_template, days_offset, is_active, created_at
		FROM care_rules
		WHERE is_active
		ORDER BY trigger_event, days_offset`)
}

// ListActiveByTrigger lists active rules for one trigger event
func (r *PostgresRuleRepository) ListActiveByTrigger(ctx context.Context, trigger string) ([]domain.CareRule, error) {
	return r.queryRules(ctx, `
		SELECT id, name, description, trigger_event, care_type,
			title_template, description_template, days_offset, is_active, created_at
		FROM care_rules
		WHERE is_active AND trigger_event = $1
		ORDER BY days_offset`, trigger)
}

func (r *PostgresRuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]domain.CareRule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list care rules")
	}
	defer rows.Close()

	var rules []domain.CareRule
	for rows.Next() {
		var rule domain.CareRule
		err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.TriggerEvent, &rule.CareType,
			&rule.TitleTemplate, &rule.DescriptionTemplate, &rule.DaysOffset, &rule.IsActive, &rule.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan care rule")
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// PostgresStatusRepository implements domain.StatusRepository using PostgreSQL
type PostgresStatusRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStatusRepository creates a new PostgreSQL treatment status repository
func NewPostgresStatusRepository(pool *pgxpool.Pool) *PostgresStatusRepository {
	return &PostgresStatusRepository{pool: pool}
}

// FindByPatient finds a patient's treatment status
func (r *PostgresStatusRepository) FindByPatient(ctx context.Context, patientID int64) (*domain.PatientTreatmentStatus, error) {
	query := `
		SELECT id, patient_id, status, start_date, end_date, total_visits,
			last_visit_date, next_scheduled_date, closure_reason, closure_type,
			notes, created_at, updated_at
		FROM patient_treatment_status
		WHERE patient_id = $1`

	s := &domain.PatientTreatmentStatus{}
	var closureType *string
	err := r.pool.QueryRow(ctx, query, patientID).Scan(
		&s.ID, &s.PatientID, &s.State, &s.StartDate, &s.EndDate, &s.TotalVisits,
		&s.LastVisitDate, &s.NextScheduledDate, &s.ClosureReason, &closureType,
		&s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("treatment status", "")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find treatment status")
	}

	if closureType != nil {
		s.ClosureTyp = domain.ClosureType(*closureType)
	}

	return s, nil
}

// Upsert inserts or updates a patient's treatment status
func (r *PostgresStatusRepository) Upsert(ctx context.Context, s *domain.PatientTreatmentStatus) error {
	query := `
		INSERT INTO patient_treatment_status (
			id, patient_id, status, start_date, end_date, total_visits,
			last_visit_date, next_scheduled_date, closure_reason, closure_type,
			notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
		ON CONFLICT (patient_id) DO UPDATE SET
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			total_visits = EXCLUDED.total_visits,
			last_visit_date = EXCLUDED.last_visit_date,
			next_scheduled_date = EXCLUDED.next_scheduled_date,
			closure_reason = EXCLUDED.closure_reason,
			closure_type = EXCLUDED.closure_type,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.PatientID, s.State, s.StartDate, s.EndDate, s.TotalVisits,
		s.LastVisitDate, s.NextScheduledDate, s.ClosureReason, string(s.ClosureTyp),
		s.Notes, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert treatment status")
	}

	return nil
}
