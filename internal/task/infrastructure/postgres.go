package infrastructure

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dahanmed/careops/internal/shared/errors"
	"github.com/dahanmed/careops/internal/shared/types"
	"github.com/dahanmed/careops/internal/task/domain"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL task repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const taskColumns = `id, patient_id, treatment_record_id, task_type, title, description,
	assigned_to, assigned_role, status, priority, due_date,
	completed_at, completed_by, trigger_service, created_at, updated_at`

const insertTask = `
	INSERT INTO tasks (
		id, patient_id, treatment_record_id, task_type, title, description,
		assigned_to, assigned_role, status, priority, due_date,
		completed_at, completed_by, trigger_service, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// Save saves a new task
func (r *PostgresRepository) Save(ctx context.Context, t *domain.Task) error {
	_, err := r.pool.Exec(ctx, insertTask, taskArgs(t)...)
	if err != nil {
		return errors.Wrap(err, "failed to save task")
	}
	return nil
}

// SaveAll saves a batch of tasks in one transaction
func (r *PostgresRepository) SaveAll(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for i := range tasks {
		if _, err := tx.Exec(ctx, insertTask, taskArgs(&tasks[i])...); err != nil {
			return errors.Wrap(err, "failed to save task")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

func taskArgs(t *domain.Task) []any {
	var patientID *int64
	if t.PatientID != 0 {
		patientID = &t.PatientID
	}

	return []any{
		t.ID, patientID, t.TreatmentRecordID, t.TaskType, t.Title, t.Description,
		t.AssignedTo, t.AssignedRole, t.Status, t.Priority, t.DueDate,
		t.CompletedAt, t.CompletedBy, t.TriggerService, t.CreatedAt, t.UpdatedAt,
	}
}

// FindByID finds a task by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t := &domain.Task{}
	var patientID *int64
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &patientID, &t.TreatmentRecordID, &t.TaskType, &t.Title, &t.Description,
		&t.AssignedTo, &t.AssignedRole, &t.Status, &t.Priority, &t.DueDate,
		&t.CompletedAt, &t.CompletedBy, &t.TriggerService, &t.CreatedAt, &t.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("task", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find task")
	}

	if patientID != nil {
		t.PatientID = *patientID
	}

	return t, nil
}

// Update updates an existing task
func (r *PostgresRepository) Update(ctx context.Context, t *domain.Task) error {
	query := `
		UPDATE tasks SET
			title = $2, description = $3, assigned_to = $4, assigned_role = $5,
			status = $6, priority = $7, due_date = $8,
			completed_at = $9, completed_by = $10, updated_at = $11
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.AssignedTo, t.AssignedRole,
		t.Status, t.Priority, t.DueDate,
		t.CompletedAt, t.CompletedBy, t.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update task")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("task", t.ID.String())
	}

	return nil
}

// ListForDate lists tasks due on or before a date that are not finished
func (r *PostgresRepository) ListForDate(ctx context.Context, date time.Time) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date = $1
		   OR (due_date < $1 AND status IN ('pending', 'in_progress'))
		ORDER BY priority = 'urgent' DESC, priority = 'high' DESC, due_date, created_at`

	return r.queryTasks(ctx, query, date)
}

// ListByAssignee lists open tasks for one staff member
func (r *PostgresRepository) ListByAssignee(ctx context.Context, assignee string) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = $1 AND status IN ('pending', 'in_progress')
		ORDER BY due_date NULLS LAST, created_at`

	return r.queryTasks(ctx, query, assignee)
}

// ListByPatient lists all tasks for a patient, newest first
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID int64) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE patient_id = $1
		ORDER BY created_at DESC`

	return r.queryTasks(ctx, query, patientID)
}

// ListByTreatmentRecord lists tasks attached to one treatment record
func (r *PostgresRepository) ListByTreatmentRecord(ctx context.Context, recordID types.ID) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE treatment_record_id = $1
		ORDER BY created_at`

	return r.queryTasks(ctx, query, recordID)
}

func (r *PostgresRepository) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var patientID *int64
		err := rows.Scan(
			&t.ID, &patientID, &t.TreatmentRecordID, &t.TaskType, &t.Title, &t.Description,
			&t.AssignedTo, &t.AssignedRole, &t.Status, &t.Priority, &t.DueDate,
			&t.CompletedAt, &t.CompletedBy, &t.TriggerService, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan task")
		}
		if patientID != nil {
			t.PatientID = *patientID
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// PostgresTemplateRepository implements domain.TemplateRepository using PostgreSQL
type PostgresTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTemplateRepository creates a new PostgreSQL task template repository
func NewPostgresTemplateRepository(pool *pgxpool.Pool) *PostgresTemplateRepository {
	return &PostgresTemplateRepository{pool: pool}
}

// ListActive lists all active task templates
func (r *PostgresTemplateRepository) ListActive(ctx context.Context) ([]domain.TaskTemplate, error) {
	return r.queryTemplates(ctx, `
		SELECT id, name, trigger_service, task_type, title_template, description_template,
			default_assigned_role, default_priority, due_days_offset, is_active, created_at
		FROM task_templates
		WHERE is_active
		ORDER BY trigger_service, name`)
}

// ListActiveByService lists active templates for one trigger service
func (r *PostgresTemplateRepository) ListActiveByService(ctx context.Context, service string) ([]domain.TaskTemplate, error) {
	return r.queryTemplates(ctx, `
		SELECT id, name, trigger_service, task_type, title_template, description_template,
			default_assigned_role, default_priority, due_days_offset, is_active, created_at
		FROM task_templates
		WHERE is_active AND trigger_service = $1
		ORDER BY name`, service)
}

func (r *PostgresTemplateRepository) queryTemplates(ctx context.Context, query string, args ...any) ([]domain.TaskTemplate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list task templates")
	}
	defer rows.Close()

	var templates []domain.TaskTemplate
	for rows.Next() {
		var tpl domain.TaskTemplate
		err := rows.Scan(
			&tpl.ID, &tpl.Name, &tpl.TriggerService, &tpl.TaskType, &tpl.TitleTemplate, &tpl.DescriptionTemplate,
			&tpl.DefaultAssignedRole, &tpl.DefaultPriority, &tpl.DueDaysOffset, &tpl.IsActive, &tpl.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan task template")
		}
		templates = append(templates, tpl)
	}

	return templates, nil
}
