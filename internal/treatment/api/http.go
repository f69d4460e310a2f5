package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/auth"
	"github.com/dahanmed/careops/internal/shared/errors"
	"github.com/dahanmed/careops/internal/shared/events"
	"github.com/dahanmed/careops/internal/shared/metrics"
	"github.com/dahanmed/careops/internal/shared/types"
	"github.com/dahanmed/careops/internal/treatment/domain"
)

// Handler provides HTTP handlers for the treatment module
type Handler struct {
	repo domain.Repository
	bus  events.Bus
	log  zerolog.Logger
}

// NewHandler creates a new treatment handler
func NewHandler(repo domain.Repository, bus events.Bus, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, bus: bus, log: log}
}

// Routes registers the treatment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListForDate)
	r.Post("/", h.CreateRecord)
	r.Get("/patients/{patientID}", h.ListByPatient)

	r.Route("/{recordID}", func(r chi.Router) {
		r.Get("/", h.GetRecord)
		r.Post("/services", h.AddService)
		r.Post("/timeline", h.AddTimelineEvent)
		r.Get("/waiting", h.GetWaitingAnalysis)
		r.Post("/complete", h.CompleteRecord)
	})

	return r
}

// --- Request types ---

type CreateRecordRequest struct {
	PatientID     int64            `json:"patient_id"`
	PatientName   string           `json:"patient_name,omitempty"`
	TreatmentDate string           `json:"treatment_date"`
	DoctorName    string           `json:"doctor_name,omitempty"`
	TreatmentRoom string           `json:"treatment_room,omitempty"`
	VisitType     domain.VisitType `json:"visit_type,omitempty"`
}

type AddServiceRequest struct {
	Service     domain.Service `json:"service"`
	PatientName string         `json:"patient_name,omitempty"`
}

type AddTimelineEventRequest struct {
	EventType  domain.TimelineEventType `json:"event_type"`
	OccurredAt time.Time                `json:"occurred_at"`
	Location   string                   `json:"location,omitempty"`
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

	records, err := h.repo.ListForDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": len(records),
	})
}

func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	date, err := time.Parse("2006-01-02", req.TreatmentDate)
	if err != nil {
		writeError(w, errors.BadRequest("invalid treatment_date, expected YYYY-MM-DD"))
		return
	}

	record, err := domain.NewTreatmentRecord(req.PatientID, date, req.VisitType)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}
	record.DoctorName = req.DoctorName
	record.TreatmentRoom = req.TreatmentRoom

	if err := h.repo.Save(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}

	if record.VisitType == domain.VisitInitial {
		h.publish(r.Context(), events.TypeInitialVisit, record.PatientID, req.PatientName, record.ID)
	}

	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil || patientID <= 0 {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	records, err := h.repo.ListByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": len(records),
	})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record := h.getRecord(w, r)
	if record == nil {
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) AddService(w http.ResponseWriter, r *http.Request) {
	record := h.getRecord(w, r)
	if record == nil {
		return
	}

	var req AddServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := record.AddService(req.Service); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.repo.Update(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r.Context(), events.TypeServicePrefix+string(req.Service), record.PatientID, req.PatientName, record.ID)

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) AddTimelineEvent(w http.ResponseWriter, r *http.Request) {
	record := h.getRecord(w, r)
	if record == nil {
		return
	}

	var req AddTimelineEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	event, err := record.AddTimelineEvent(req.EventType, req.OccurredAt, req.Location, staffName(r))
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.AddTimelineEvent(r.Context(), event); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) GetWaitingAnalysis(w http.ResponseWriter, r *http.Request) {
	record := h.getRecord(w, r)
	if record == nil {
		return
	}

	writeJSON(w, http.StatusOK, record.AnalyzeWaiting())
}

func (h *Handler) CompleteRecord(w http.ResponseWriter, r *http.Request) {
	record := h.getRecord(w, r)
	if record == nil {
		return
	}

	if err := record.Complete(); err != nil {
		writeError(w, errors.Conflict(err.Error()))
		return
	}

	if err := h.repo.Update(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// --- Helpers ---

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) *domain.TreatmentRecord {
	id, err := types.ParseID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid treatment record ID"))
		return nil
	}

	record, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil
	}

	return record
}

// publish emits a service event. Publishing failures are logged, not
// surfaced: the record write already succeeded and the caller should not
// see a 5xx for a delayed care trigger.
func (h *Handler) publish(ctx context.Context, eventType string, patientID int64, patientName string, recordID types.ID) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "treatment", patientID, patientName).
		WithData(map[string]any{"treatment_record_id": recordID})

	if err := h.bus.Publish(ctx, event); err != nil {
		h.log.Error().Err(err).Str("event_type", eventType).Msg("failed to publish service event")
		return
	}

	metrics.RecordServiceEvent(eventType)
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
