package domain

import (
	"testing"
	"time"
)

func occurrence(trigger string) TriggerOccurrence {
	return TriggerOccurrence{
		Trigger:     trigger,
		PatientID:   1001,
		PatientName: "김민지",
		OccurredOn:  time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateHerbalDelivery(t *testing.T) {
	items := Evaluate(occurrence(TriggerHerbalDelivery), DefaultRules())

	if len(items) != 2 {
		t.Fatalf("Expected 2 items for herbal delivery, got %d", len(items))
	}

	if items[0].CareType != CareHappyCallDelivery {
		t.Errorf("Expected delivery happy call first, got %s", items[0].CareType)
	}
	if items[1].CareType != CareHappyCallMedication {
		t.Errorf("Expected medication happy call second, got %s", items[1].CareType)
	}

	wantDay0 := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)
	wantDay7 := time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC)
	if !items[0].ScheduledDate.Equal(wantDay0) {
		t.Errorf("Expected delivery call on %v, got %v", wantDay0, items[0].ScheduledDate)
	}
	if !items[1].ScheduledDate.Equal(wantDay7) {
		t.Errorf("Expected medication call on %v, got %v", wantDay7, items[1].ScheduledDate)
	}
}

func TestEvaluateVisitCount10(t *testing.T) {
	items := Evaluate(occurrence(TriggerVisitCount10), DefaultRules())

	if len(items) != 1 {
		t.Fatalf("Expected exactly 1 closure item, got %d", len(items))
	}
	if items[0].CareType != CareTreatmentClosure {
		t.Errorf("Expected treatment closure, got %s", items[0].CareType)
	}
}

func TestEvaluateTemplateSubstitution(t *testing.T) {
	items := Evaluate(occurrence(TriggerHerbalDelivery), DefaultRules())

	if items[0].Title != "김민지 delivery happy call" {
		t.Errorf("Expected patient name substituted, got %q", items[0].Title)
	}
}

func TestEvaluateAllItemsPending(t *testing.T) {
	for _, trigger := range []string{TriggerInitialVisit, TriggerHerbalDelivery, TriggerVisitCount10} {
		for _, item := range Evaluate(occurrence(trigger), DefaultRules()) {
			if item.Status != CareStatusPending {
				t.Errorf("trigger %s: expected pending, got %s", trigger, item.Status)
			}
			if item.TriggerType != TriggerAuto {
				t.Errorf("trigger %s: expected auto trigger type, got %s", trigger, item.TriggerType)
			}
		}
	}
}

func TestEvaluateUnknownTrigger(t *testing.T) {
	if items := Evaluate(occurrence("unknown_event"), DefaultRules()); len(items) != 0 {
		t.Errorf("Expected no items for unknown trigger, got %d", len(items))
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	rules := []CareRule{
		{
			Name:          "disabled rule",
			TriggerEvent:  TriggerInitialVisit,
			CareType:      CareTreatmentFollowup,
			TitleTemplate: "{patient_name} follow-up",
			IsActive:      false,
		},
	}

	if items := Evaluate(occurrence(TriggerInitialVisit), rules); len(items) != 0 {
		t.Errorf("Expected no items from inactive rules, got %d", len(items))
	}
}
