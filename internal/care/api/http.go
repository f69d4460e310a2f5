package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/care/domain"
	"github.com/dahanmed/careops/internal/shared/auth"
	"github.com/dahanmed/careops/internal/shared/errors"
	"github.com/dahanmed/careops/internal/shared/events"
	"github.com/dahanmed/careops/internal/shared/metrics"
	"github.com/dahanmed/careops/internal/shared/types"
)

// Handler provides HTTP handlers for the care module
type Handler struct {
	items  domain.ItemRepository
	rules  domain.RuleRepository
	status domain.StatusRepository
	bus    events.Bus
	log    zerolog.Logger
}

// NewHandler creates a new care handler
func NewHandler(items domain.ItemRepository, rules domain.RuleRepository, status domain.StatusRepository, bus events.Bus, log zerolog.Logger) *Handler {
	return &Handler{items: items, rules: rules, status: status, bus: bus, log: log}
}

// Routes registers the care routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListForDate)
	r.Post("/", h.CreateItem)
	r.Get("/rules", h.ListRules)

	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", h.GetItem)
		r.Post("/complete", h.CompleteItem)
		r.Post("/skip", h.SkipItem)
		r.Post("/reschedule", h.RescheduleItem)
	})

	r.Route("/patients/{patientID}", func(r chi.Router) {
		r.Get("/", h.ListByPatient)
		r.Get("/status", h.GetTreatmentStatus)
		r.Post("/visit", h.RecordVisit)
		r.Post("/close", h.CloseTreatment)
	})

	return r
}

// --- Request types ---

type CreateItemRequest struct {
	PatientID     int64           `json:"patient_id"`
	CareType      domain.CareType `json:"care_type"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	ScheduledDate string          `json:"scheduled_date"`
}

type CompleteItemRequest struct {
	Result string `json:"result"`
}

type SkipItemRequest struct {
	Reason string `json:"reason"`
}

type RescheduleItemRequest struct {
	ScheduledDate string `json:"scheduled_date"`
}

type RecordVisitRequest struct {
	VisitDate string `json:"visit_date"`
}

type CloseTreatmentRequest struct {
	ClosureType domain.ClosureType `json:"closure_type"`
	Reason      string             `json:"reason"`
}

// --- Handlers ---

// ListForDate returns the care list for a date, defaulting to today. Overdue
// pending items are carried along.
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

	items, err := h.items.ListForDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	scheduled, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		writeError(w, errors.BadRequest("invalid scheduled_date, expected YYYY-MM-DD"))
		return
	}

	item, err := domain.NewCareItem(req.PatientID, req.CareType, req.Title, scheduled)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}
	item.Description = req.Description

	if err := h.items.Save(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordCareItemCreated(string(item.CareType), string(item.TriggerType))
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rules,
		"total": len(rules),
	})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item := h.getItem(w, r)
	if item == nil {
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) CompleteItem(w http.ResponseWriter, r *http.Request) {
	item := h.getItem(w, r)
	if item == nil {
		return
	}

	var req CompleteItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := item.Complete(staffName(r), req.Result); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.items.Update(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordCareItemClosed("completed")
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) SkipItem(w http.ResponseWriter, r *http.Request) {
	item := h.getItem(w, r)
	if item == nil {
		return
	}

	var req SkipItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := item.Skip(staffName(r), req.Reason); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.items.Update(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordCareItemClosed("skipped")
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) RescheduleItem(w http.ResponseWriter, r *http.Request) {
	item := h.getItem(w, r)
	if item == nil {
		return
	}

	var req RescheduleItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	scheduled, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		writeError(w, errors.BadRequest("invalid scheduled_date, expected YYYY-MM-DD"))
		return
	}

	if err := item.Reschedule(scheduled); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.items.Update(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parsePatientID(w, r)
	if !ok {
		return
	}

	items, err := h.items.ListByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) GetTreatmentStatus(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parsePatientID(w, r)
	if !ok {
		return
	}

	status, err := h.status.FindByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// RecordVisit counts a visit against the patient's treatment course,
// creating the course on first sight.
func (h *Handler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parsePatientID(w, r)
	if !ok {
		return
	}

	var req RecordVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	visitDate := time.Now()
	if req.VisitDate != "" {
		parsed, err := time.Parse("2006-01-02", req.VisitDate)
		if err != nil {
			writeError(w, errors.BadRequest("invalid visit_date, expected YYYY-MM-DD"))
			return
		}
		visitDate = parsed
	}

	status, err := h.status.FindByPatient(r.Context(), patientID)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); !ok || appErr.HTTPStatus != http.StatusNotFound {
			writeError(w, err)
			return
		}
		status = domain.NewTreatmentStatus(patientID, visitDate)
	}

	reachedThreshold := status.RecordVisit(visitDate)

	if err := h.status.Upsert(r.Context(), status); err != nil {
		writeError(w, err)
		return
	}

	if reachedThreshold && h.bus != nil {
		event := events.NewEvent(events.TypeVisitCount10, "care", patientID, "")
		if err := h.bus.Publish(r.Context(), event); err != nil {
			h.log.Error().Err(err).Int64("patient_id", patientID).Msg("failed to publish visit count event")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            status,
		"reached_threshold": reachedThreshold,
	})
}

func (h *Handler) CloseTreatment(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parsePatientID(w, r)
	if !ok {
		return
	}

	var req CloseTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	status, err := h.status.FindByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := status.Close(req.ClosureType, req.Reason); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.status.Upsert(r.Context(), status); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// --- Helpers ---

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) *domain.CareItem {
	id, err := types.ParseID(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid care item ID"))
		return nil
	}

	item, err := h.items.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil
	}

	return item
}

func parsePatientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return 0, false
	}
	return id, true
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
