package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dahanmed/careops/internal/shared/auth"
	"github.com/dahanmed/careops/internal/shared/errors"
	"github.com/dahanmed/careops/internal/shared/types"
	"github.com/dahanmed/careops/internal/task/domain"
)

// Handler provides HTTP handlers for the task module
type Handler struct {
	repo      domain.Repository
	templates domain.TemplateRepository
}

// NewHandler creates a new task handler
func NewHandler(repo domain.Repository, templates domain.TemplateRepository) *Handler {
	return &Handler{repo: repo, templates: templates}
}

// Routes registers the task routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListForDate)
	r.Post("/", h.CreateTask)
	r.Get("/templates", h.ListTemplates)
	r.Get("/assignee/{assignee}", h.ListByAssignee)
	r.Get("/patients/{patientID}", h.ListByPatient)
	r.Get("/records/{recordID}", h.ListByTreatmentRecord)

	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Post("/start", h.StartTask)
		r.Post("/complete", h.CompleteTask)
		r.Post("/cancel", h.CancelTask)
		r.Post("/assign", h.AssignTask)
	})

	return r
}

// --- Request types ---

type CreateTaskRequest struct {
	PatientID   int64           `json:"patient_id,omitempty"`
	TaskType    string          `json:"task_type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    domain.Priority `json:"priority,omitempty"`
	DueDate     string          `json:"due_date,omitempty"`
}

type AssignTaskRequest struct {
	Assignee string `json:"assignee"`
}

// --- Handlers ---

func (h *Handler) ListForDate(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, errors.BadRequest("invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	tasks, err := h.repo.ListForDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  tasks,
		"total": len(tasks),
	})
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	task, err := domain.NewTask(req.TaskType, req.Title, req.Priority)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}
	task.PatientID = req.PatientID
	task.Description = req.Description

	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			writeError(w, errors.BadRequest("invalid due_date, expected YYYY-MM-DD"))
			return
		}
		task.DueDate = &due
	}

	if err := h.repo.Save(r.Context(), task); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  templates,
		"total": len(templates),
	})
}

func (h *Handler) ListByAssignee(w http.ResponseWriter, r *http.Request) {
	assignee := chi.URLParam(r, "assignee")

	tasks, err := h.repo.ListByAssignee(r.Context(), assignee)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  tasks,
		"total": len(tasks),
	})
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil || patientID <= 0 {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	tasks, err := h.repo.ListByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  tasks,
		"total": len(tasks),
	})
}

func (h *Handler) ListByTreatmentRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := types.ParseID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid treatment record ID"))
		return
	}

	tasks, err := h.repo.ListByTreatmentRecord(r.Context(), recordID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  tasks,
		"total": len(tasks),
	})
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task := h.getTask(w, r)
	if task == nil {
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(task *domain.Task) error {
		return task.Start()
	})
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(task *domain.Task) error {
		return task.Complete(staffName(r))
	})
}

func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(task *domain.Task) error {
		return task.Cancel(staffName(r))
	})
}

func (h *Handler) AssignTask(w http.ResponseWriter, r *http.Request) {
	var req AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	h.transition(w, r, func(task *domain.Task) error {
		return task.Assign(req.Assignee)
	})
}

// --- Helpers ---

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(*domain.Task) error) {
	task := h.getTask(w, r)
	if task == nil {
		return
	}

	if err := apply(task); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.repo.Update(r.Context(), task); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) *domain.Task {
	id, err := types.ParseID(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid task ID"))
		return nil
	}

	task, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil
	}

	return task
}

func staffName(r *http.Request) string {
	if user := auth.GetUser(r.Context()); user != nil {
		return user.Name
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
