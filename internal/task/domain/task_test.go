package domain

import (
	"testing"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

func TestTaskLifecycle(t *testing.T) {
	task, err := NewTask("chart_note", "write chart note", PriorityHigh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != TaskStatusPending {
		t.Fatalf("Expected pending, got %s", task.Status)
	}

	if err := task.Complete("dr. park"); err == nil {
		t.Error("Expected error completing a pending task")
	}

	if err := task.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != TaskStatusInProgress {
		t.Errorf("Expected in_progress, got %s", task.Status)
	}

	if err := task.Start(); err == nil {
		t.Error("Expected error starting a task in progress")
	}

	if err := task.Complete("dr. park"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != TaskStatusCompleted {
		t.Errorf("Expected completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	if err := task.Cancel("dr. park"); err == nil {
		t.Error("Expected error canceling a completed task")
	}
	if err := task.Assign("nurse kim"); err == nil {
		t.Error("Expected error assigning a completed task")
	}
}

func TestTaskCancelFromPending(t *testing.T) {
	task, _ := NewTask("decoction_order", "send decoction order", PriorityNormal)

	if err := task.Cancel("desk lee"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != TaskStatusCanceled {
		t.Errorf("Expected canceled, got %s", task.Status)
	}
	if !task.IsTerminal() {
		t.Error("Expected canceled task to be terminal")
	}
}

func TestTaskDefaultPriority(t *testing.T) {
	task, err := NewTask("chart_note", "note", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Priority != PriorityNormal {
		t.Errorf("Expected normal priority, got %s", task.Priority)
	}
}

func defaultTemplates() []TaskTemplate {
	return []TaskTemplate{
		{
			ID:              types.NewID(),
			Name:            "herbal chart note",
			TriggerService:  "herbal_medicine",
			TaskType:        "chart_note",
			TitleTemplate:   "{patient_name} herbal prescription note",
			DefaultPriority: PriorityHigh,
			IsActive:        true,
		},
		{
			ID:              types.NewID(),
			Name:            "decoction order",
			TriggerService:  "herbal_medicine",
			TaskType:        "decoction_order",
			TitleTemplate:   "{patient_name} decoction order",
			DefaultPriority: PriorityNormal,
			IsActive:        true,
		},
		{
			ID:              types.NewID(),
			Name:            "ultrasound reading",
			TriggerService:  "ultrasound",
			TaskType:        "exam_reading",
			TitleTemplate:   "{patient_name} ultrasound reading",
			DefaultPriority: PriorityNormal,
			DueDaysOffset:   1,
			IsActive:        true,
		},
	}
}

func TestGenerateFromService(t *testing.T) {
	occ := ServiceOccurrence{
		Service:     "herbal_medicine",
		PatientID:   1001,
		PatientName: "김민지",
		OccurredOn:  time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}

	tasks := GenerateFromService(occ, defaultTemplates())

	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks for herbal medicine, got %d", len(tasks))
	}
	if tasks[0].TaskType != "chart_note" || tasks[1].TaskType != "decoction_order" {
		t.Errorf("Expected chart_note then decoction_order, got %s then %s",
			tasks[0].TaskType, tasks[1].TaskType)
	}
	if tasks[0].Title != "김민지 herbal prescription note" {
		t.Errorf("Expected patient name substituted, got %q", tasks[0].Title)
	}
	for _, task := range tasks {
		if task.Status != TaskStatusPending {
			t.Errorf("Expected pending, got %s", task.Status)
		}
	}
}

func TestGenerateDueDateOffset(t *testing.T) {
	occ := ServiceOccurrence{
		Service:     "ultrasound",
		PatientID:   1001,
		PatientName: "김민지",
		OccurredOn:  time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}

	tasks := GenerateFromService(occ, defaultTemplates())
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task for ultrasound, got %d", len(tasks))
	}

	want := time.Date(2025, 12, 11, 0, 0, 0, 0, time.UTC)
	if tasks[0].DueDate == nil || !tasks[0].DueDate.Equal(want) {
		t.Errorf("Expected due date %v, got %v", want, tasks[0].DueDate)
	}
}

func TestGenerateUnknownService(t *testing.T) {
	occ := ServiceOccurrence{Service: "cupping", PatientID: 1001, OccurredOn: time.Now()}

	if tasks := GenerateFromService(occ, defaultTemplates()); len(tasks) != 0 {
		t.Errorf("Expected no tasks for service without templates, got %d", len(tasks))
	}
}
