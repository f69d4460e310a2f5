package domain

import (
	"fmt"
	"time"

	"github.com/dahanmed/careops/internal/shared/types"
)

// TimelineEventType is one step of a patient's movement through the clinic
type TimelineEventType string

const (
	EventCheckIn        TimelineEventType = "check_in"
	EventConsultStart   TimelineEventType = "consult_start"
	EventConsultEnd     TimelineEventType = "consult_end"
	EventTreatmentStart TimelineEventType = "treatment_start"
	EventTreatmentEnd   TimelineEventType = "treatment_end"
	EventPayment        TimelineEventType = "payment"
	EventCheckOut       TimelineEventType = "check_out"
)

// timelineRank is the canonical ordering of timeline events within a visit
var timelineRank = map[TimelineEventType]int{
	EventCheckIn:        1,
	EventConsultStart:   2,
	EventConsultEnd:     3,
	EventTreatmentStart: 4,
	EventTreatmentEnd:   5,
	EventPayment:        6,
	EventCheckOut:       7,
}

// TimelineEvent is one timestamped step in a treatment record's timeline
type TimelineEvent struct {
	ID                types.ID          `json:"id"`
	TreatmentRecordID types.ID          `json:"treatment_record_id"`
	EventType         TimelineEventType `json:"event_type"`
	OccurredAt        time.Time         `json:"occurred_at"`
	Location          string            `json:"location,omitempty"`
	StaffName         string            `json:"staff_name,omitempty"`
	Memo              string            `json:"memo,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AddTimelineEvent appends a step to the record's timeline. Steps must
// arrive in canonical order with non-decreasing timestamps; intermediate
// steps may be absent but never out of order. Rejects rather than reorders,
// a timeline with check_out before consult_start is a data entry error.
func (t *TreatmentRecord) AddTimelineEvent(eventType TimelineEventType, occurredAt time.Time, location, staffName string) (*TimelineEvent, error) {
	rank, ok := timelineRank[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown timeline event type %q", eventType)
	}
	if occurredAt.IsZero() {
		return nil, fmt.Errorf("event time is required")
	}

	if len(t.Timeline) > 0 {
		last := t.Timeline[len(t.Timeline)-1]
		if rank <= timelineRank[last.EventType] {
			return nil, fmt.Errorf("%s cannot follow %s", eventType, last.EventType)
		}
		if occurredAt.Before(last.OccurredAt) {
			return nil, fmt.Errorf("%s at %s is earlier than %s at %s",
				eventType, occurredAt.Format(time.TimeOnly),
				last.EventType, last.OccurredAt.Format(time.TimeOnly))
		}
	}

	event := TimelineEvent{
		ID:                types.NewID(),
		TreatmentRecordID: t.ID,
		EventType:         eventType,
		OccurredAt:        occurredAt,
		Location:          location,
		StaffName:         staffName,
		CreatedAt:         time.Now(),
	}

	t.Timeline = append(t.Timeline, event)
	t.UpdatedAt = time.Now()

	return &t.Timeline[len(t.Timeline)-1], nil
}

// WaitingAnalysis breaks a visit into waiting and service time. Durations
// are zero when the bracketing events are missing from the timeline.
type WaitingAnalysis struct {
	WaitBeforeConsult   time.Duration `json:"wait_before_consult"`
	ConsultDuration     time.Duration `json:"consult_duration"`
	WaitBeforeTreatment time.Duration `json:"wait_before_treatment"`
	TreatmentDuration   time.Duration `json:"treatment_duration"`
	TotalDuration       time.Duration `json:"total_duration"`
}

// AnalyzeWaiting derives waiting and service durations from the timeline
func (t *TreatmentRecord) AnalyzeWaiting() WaitingAnalysis {
	at := make(map[TimelineEventType]time.Time, len(t.Timeline))
	for _, e := range t.Timeline {
		at[e.EventType] = e.OccurredAt
	}

	return WaitingAnalysis{
		WaitBeforeConsult:   spanBetween(at, EventCheckIn, EventConsultStart),
		ConsultDuration:     spanBetween(at, EventConsultStart, EventConsultEnd),
		WaitBeforeTreatment: spanBetween(at, EventConsultEnd, EventTreatmentStart),
		TreatmentDuration:   spanBetween(at, EventTreatmentStart, EventTreatmentEnd),
		TotalDuration:       spanBetween(at, EventCheckIn, EventCheckOut),
	}
}

func spanBetween(at map[TimelineEventType]time.Time, from, to TimelineEventType) time.Duration {
	start, okStart := at[from]
	end, okEnd := at[to]
	if !okStart || !okEnd {
		return 0
	}
	return end.Sub(start)
}
