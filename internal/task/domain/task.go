package domain

import (
	"fmt"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// TaskStatus defines the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCanceled   TaskStatus = "canceled"
)

// Priority defines task priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is one unit of staff work around a treatment, such as writing a
// chart note or sending a decoction order. Status moves forward only:
// pending to in_progress to completed, or canceled from either non-terminal
// state.
type Task struct {
	ID                types.ID  `json:"id"`
	PatientID         int64     `json:"patient_id,omitempty"`
	PatientName       string    `json:"patient_name,omitempty"`
	TreatmentRecordID *types.ID `json:"treatment_record_id,omitempty"`

	TaskType    string     `json:"task_type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`

	AssignedTo   string `json:"assigned_to,omitempty"`
	AssignedRole string `json:"assigned_role,omitempty"`

	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`

	TriggerService string `json:"trigger_service,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask creates a manually entered task
func NewTask(taskType, title string, priority Priority) (*Task, error) {
	if taskType == "" {
		return nil, fmt.Errorf("task type is required")
	}
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if priority == "" {
		priority = PriorityNormal
	}

	now := time.Now()
	return &Task{
		ID:        types.NewID(),
		TaskType:  taskType,
		Title:     title,
		Status:    TaskStatusPending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start moves a pending task to in_progress
func (t *Task) Start() error {
	if t.Status != TaskStatusPending {
		return fmt.Errorf("can only start a pending task, current status is %s", t.Status)
	}

	t.Status = TaskStatusInProgress
	t.UpdatedAt = time.Now()
	return nil
}

// Complete finishes an in-progress task
func (t *Task) Complete(by string) error {
	if t.Status != TaskStatusInProgress {
		return fmt.Errorf("can only complete a task in progress, current status is %s", t.Status)
	}

	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.CompletedBy = by
	t.UpdatedAt = now
	return nil
}

// Cancel drops a task that is not yet finished
func (t *Task) Cancel(by string) error {
	if t.Status == TaskStatusCompleted || t.Status == TaskStatusCanceled {
		return fmt.Errorf("task is already %s", t.Status)
	}

	now := time.Now()
	t.Status = TaskStatusCanceled
	t.CompletedAt = &now
	t.CompletedBy = by
	t.UpdatedAt = now
	return nil
}

// Assign hands the task to a staff member
func (t *Task) Assign(assignee string) error {
	if t.Status == TaskStatusCompleted || t.Status == TaskStatusCanceled {
		return fmt.Errorf("cannot assign a %s task", t.Status)
	}
	if assignee == "" {
		return fmt.Errorf("assignee is required")
	}

	t.AssignedTo = assignee
	t.UpdatedAt = time.Now()
	return nil
}

// IsTerminal reports whether the task can no longer change status
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusCanceled
}
