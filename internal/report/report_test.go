package report

import (
	"context"
	"testing"
	"time"

	"github.com/dahanmed/careops/internal/emr"
	"github.com/dahanmed/careops/internal/visit"
)

type stubSource struct {
	facts []emr.PatientVisitFacts
	err   error
}

func (s *stubSource) FetchVisitFacts(ctx context.Context, date time.Time) ([]emr.PatientVisitFacts, error) {
	return s.facts, s.err
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestDailyReport(t *testing.T) {
	source := &stubSource{facts: []emr.PatientVisitFacts{
		{PatientID: 1001, PatientName: "김민지", Facts: visit.VisitFacts{
			RegistrationDate: day("2025-12-10"), VisitDate: day("2025-12-10"), CopayAmount: 5000,
		}},
		{PatientID: 2002, PatientName: "박서준", Facts: visit.VisitFacts{
			RegistrationDate: day("2025-06-01"), VisitDate: day("2025-12-10"), HasAutoInsuranceLineItem: true,
		}},
		{PatientID: 3003, PatientName: "이하늘", Facts: visit.VisitFacts{
			RegistrationDate: day("2025-12-10"), VisitDate: day("2025-12-10"), NonCoveredAmount: 180000,
		}},
		{PatientID: 4004, PatientName: "최유진", Facts: visit.VisitFacts{
			RegistrationDate: day("2025-06-01"), VisitDate: day("2025-12-10"), CopayAmount: 5000,
		}},
	}}

	report, err := NewBuilder(source).Daily(context.Background(), day("2025-12-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Date != "2025-12-10" {
		t.Errorf("Expected date 2025-12-10, got %s", report.Date)
	}
	if report.Total != 4 {
		t.Errorf("Expected 4 visits, got %d", report.Total)
	}
	if report.Counts[visit.CategoryNewAcupuncture] != 1 {
		t.Errorf("Expected 1 new acupuncture, got %d", report.Counts[visit.CategoryNewAcupuncture])
	}
	if report.Counts[visit.CategoryAutoInsurance] != 1 {
		t.Errorf("Expected 1 auto insurance, got %d", report.Counts[visit.CategoryAutoInsurance])
	}
	if report.Counts[visit.CategoryNewHerbal] != 1 {
		t.Errorf("Expected 1 new herbal, got %d", report.Counts[visit.CategoryNewHerbal])
	}
	if report.Counts[visit.CategoryOther] != 1 {
		t.Errorf("Expected 1 other, got %d", report.Counts[visit.CategoryOther])
	}

	// Every category appears in the counts even when zero
	for _, c := range visit.Categories {
		if _, ok := report.Counts[c]; !ok {
			t.Errorf("Expected category %s present in counts", c)
		}
	}

	if report.Visits[1].Category != visit.CategoryAutoInsurance {
		t.Errorf("Expected per-visit category preserved, got %s", report.Visits[1].Category)
	}
}

func TestDailyReportEmptyDay(t *testing.T) {
	report, err := NewBuilder(&stubSource{}).Daily(context.Background(), day("2025-12-25"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 0 || len(report.Visits) != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}
