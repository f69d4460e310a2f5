package emr

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/config"
	"github.com/dahanmed/careops/internal/visit"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestAggregateFacts(t *testing.T) {
	details := []detailRow{
		{PatientID: 1001, PatientName: "김민지", RegisteredOn: day("2025-12-10"), VisitDate: day("2025-12-10"), ItemName: "초진 진찰료", Copay: 5000},
		{PatientID: 1001, PatientName: "김민지", RegisteredOn: day("2025-12-10"), VisitDate: day("2025-12-10"), ItemName: "침술", Copay: 3000},
		{PatientID: 2002, PatientName: "박서준", RegisteredOn: day("2025-06-01"), VisitDate: day("2025-12-10"), ItemName: "자동차보험 침술"},
		{PatientID: 3003, PatientName: "이하늘", RegisteredOn: day("2025-12-10"), VisitDate: day("2025-12-10"), ItemName: "한약 1제", NonCovered: 180000},
	}

	facts := aggregateFacts(details)

	if len(facts) != 3 {
		t.Fatalf("Expected 3 patients, got %d", len(facts))
	}

	first := facts[0]
	if first.PatientID != 1001 {
		t.Errorf("Expected patient 1001 first, got %d", first.PatientID)
	}
	if !first.Facts.HasIntakeFeeLineItem {
		t.Error("Expected intake fee flag for patient 1001")
	}
	if first.Facts.CopayAmount != 8000 {
		t.Errorf("Expected copay summed to 8000, got %d", first.Facts.CopayAmount)
	}
	if visit.Classify(first.Facts) != visit.CategoryNewAcupuncture {
		t.Errorf("Expected new acupuncture, got %s", visit.Classify(first.Facts))
	}

	second := facts[1]
	if !second.Facts.HasAutoInsuranceLineItem {
		t.Error("Expected auto insurance flag for patient 2002")
	}
	if visit.Classify(second.Facts) != visit.CategoryAutoInsurance {
		t.Errorf("Expected auto insurance, got %s", visit.Classify(second.Facts))
	}

	third := facts[2]
	if third.Facts.NonCoveredAmount != 180000 {
		t.Errorf("Expected non-covered 180000, got %d", third.Facts.NonCoveredAmount)
	}
	if visit.Classify(third.Facts) != visit.CategoryNewHerbal {
		t.Errorf("Expected new herbal, got %s", visit.Classify(third.Facts))
	}
}

func TestAggregateFactsIgnoresNegativeAmounts(t *testing.T) {
	details := []detailRow{
		{PatientID: 1001, RegisteredOn: day("2025-12-10"), VisitDate: day("2025-12-10"), ItemName: "침술", Copay: 5000},
		// Refund line
		{PatientID: 1001, RegisteredOn: day("2025-12-10"), VisitDate: day("2025-12-10"), ItemName: "침술", Copay: -5000},
	}

	facts := aggregateFacts(details)
	if facts[0].Facts.CopayAmount != 5000 {
		t.Errorf("Expected refunds ignored, got copay %d", facts[0].Facts.CopayAmount)
	}
}

func TestStopReleasesLockWhileWaiting(t *testing.T) {
	a := New(config.EMRConfig{PollInterval: time.Hour}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	a.running = true
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		// A tick racing shutdown still needs the mutex before it can exit
		a.mu.Lock()
		a.lastPoll = time.Now()
		a.mu.Unlock()
	}()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()

	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop did not finish: %v", err)
	}
	if a.IsConnected() {
		t.Error("Expected adapter stopped")
	}
}

func TestServiceForItem(t *testing.T) {
	tests := []struct {
		item string
		want string
	}{
		{"한약 1제", "herbal_delivery"},
		{"탕전료", "herbal_delivery"},
		{"초진 진찰료", "initial_visit"},
		{"일반진료관리", "initial_visit"},
		{"침술", ""},
		{"자동차보험 침술", ""},
	}

	for _, tt := range tests {
		if got := serviceForItem(tt.item); got != tt.want {
			t.Errorf("serviceForItem(%q) = %q, want %q", tt.item, got, tt.want)
		}
	}
}
