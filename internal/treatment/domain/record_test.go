package domain

import (
	"testing"
	"time"
)

func newRecord(t *testing.T) *TreatmentRecord {
	t.Helper()
	record, err := NewTreatmentRecord(1001, time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC), VisitInitial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return record
}

func at(hour, min int) time.Time {
	return time.Date(2025, 12, 10, hour, min, 0, 0, time.UTC)
}

func TestRecordServices(t *testing.T) {
	record := newRecord(t)

	for _, s := range []Service{ServiceInitialConsult, ServiceAcupuncture, ServiceAcupuncture} {
		if err := record.AddService(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(record.Services) != 3 {
		t.Errorf("Expected 3 services, got %d", len(record.Services))
	}
	if !record.HasService(ServiceAcupuncture) {
		t.Error("Expected acupuncture to be recorded")
	}
	if record.HasService(ServiceHerbalMedicine) {
		t.Error("Did not expect herbal medicine")
	}

	if err := record.Complete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := record.AddService(ServiceCupping); err == nil {
		t.Error("Expected error adding a service to a completed record")
	}
	if err := record.Complete(); err == nil {
		t.Error("Expected error completing a completed record")
	}
}

func TestTimelineCanonicalOrder(t *testing.T) {
	record := newRecord(t)

	steps := []struct {
		eventType TimelineEventType
		when      time.Time
	}{
		{EventCheckIn, at(9, 0)},
		{EventConsultStart, at(9, 12)},
		{EventConsultEnd, at(9, 25)},
		{EventTreatmentStart, at(9, 31)},
		{EventTreatmentEnd, at(10, 5)},
		{EventCheckOut, at(10, 12)},
	}

	for _, s := range steps {
		if _, err := record.AddTimelineEvent(s.eventType, s.when, "", ""); err != nil {
			t.Fatalf("append %s: unexpected error: %v", s.eventType, err)
		}
	}

	if len(record.Timeline) != 6 {
		t.Errorf("Expected 6 timeline events, got %d", len(record.Timeline))
	}
}

func TestTimelineRejectsOutOfOrder(t *testing.T) {
	record := newRecord(t)

	if _, err := record.AddTimelineEvent(EventConsultStart, at(9, 10), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Canonical rank moved backwards
	if _, err := record.AddTimelineEvent(EventCheckIn, at(9, 20), "", ""); err == nil {
		t.Error("Expected error appending check_in after consult_start")
	}

	// Same step twice
	if _, err := record.AddTimelineEvent(EventConsultStart, at(9, 30), "", ""); err == nil {
		t.Error("Expected error appending consult_start twice")
	}
}

func TestTimelineRejectsDecreasingTimestamp(t *testing.T) {
	record := newRecord(t)

	if _, err := record.AddTimelineEvent(EventCheckIn, at(9, 30), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := record.AddTimelineEvent(EventConsultStart, at(9, 15), "", ""); err == nil {
		t.Error("Expected error for a timestamp earlier than the previous step")
	}
}

func TestTimelineSkippedStepsAllowed(t *testing.T) {
	record := newRecord(t)

	// No consult: straight from check-in to treatment
	if _, err := record.AddTimelineEvent(EventCheckIn, at(9, 0), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := record.AddTimelineEvent(EventTreatmentStart, at(9, 10), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnalyzeWaiting(t *testing.T) {
	record := newRecord(t)

	record.AddTimelineEvent(EventCheckIn, at(9, 0), "", "")
	record.AddTimelineEvent(EventConsultStart, at(9, 12), "", "")
	record.AddTimelineEvent(EventConsultEnd, at(9, 25), "", "")
	record.AddTimelineEvent(EventTreatmentStart, at(9, 31), "", "")
	record.AddTimelineEvent(EventTreatmentEnd, at(10, 5), "", "")
	record.AddTimelineEvent(EventCheckOut, at(10, 12), "", "")

	a := record.AnalyzeWaiting()

	if a.WaitBeforeConsult != 12*time.Minute {
		t.Errorf("Expected 12m wait before consult, got %v", a.WaitBeforeConsult)
	}
	if a.ConsultDuration != 13*time.Minute {
		t.Errorf("Expected 13m consult, got %v", a.ConsultDuration)
	}
	if a.WaitBeforeTreatment != 6*time.Minute {
		t.Errorf("Expected 6m wait before treatment, got %v", a.WaitBeforeTreatment)
	}
	if a.TreatmentDuration != 34*time.Minute {
		t.Errorf("Expected 34m treatment, got %v", a.TreatmentDuration)
	}
	if a.TotalDuration != 72*time.Minute {
		t.Errorf("Expected 72m total, got %v", a.TotalDuration)
	}
}

func TestAnalyzeWaitingMissingEvents(t *testing.T) {
	record := newRecord(t)

	record.AddTimelineEvent(EventCheckIn, at(9, 0), "", "")
	record.AddTimelineEvent(EventTreatmentStart, at(9, 10), "", "")

	a := record.AnalyzeWaiting()

	if a.WaitBeforeConsult != 0 || a.ConsultDuration != 0 || a.TotalDuration != 0 {
		t.Errorf("Expected zero durations for missing bracketing events, got %+v", a)
	}
}
