package visit

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// TestClassifyNewAcupuncture tests the plain new-patient copay path
func TestClassifyNewAcupuncture(t *testing.T) {
	facts := VisitFacts{
		RegistrationDate: day("2025-12-10"),
		VisitDate:        day("2025-12-10"),
		CopayAmount:      5000,
	}

	if got := Classify(facts); got != CategoryNewAcupuncture {
		t.Errorf("Expected %s, got %s", CategoryNewAcupuncture, got)
	}
}

// TestClassifyDecisionOrder tests the canonical first-match-wins ordering
func TestClassifyDecisionOrder(t *testing.T) {
	tests := []struct {
		name  string
		facts VisitFacts
		want  Category
	}{
		{
			"new patient with auto insurance",
			VisitFacts{
				RegistrationDate:         day("2025-12-10"),
				VisitDate:                day("2025-12-10"),
				HasAutoInsuranceLineItem: true,
				CopayAmount:              5000,
			},
			CategoryNewAutoInsurance,
		},
		{
			"returning auto insurance with intake fee",
			VisitFacts{
				RegistrationDate:         day("2025-12-01"),
				VisitDate:                day("2025-12-10"),
				HasAutoInsuranceLineItem: true,
				HasIntakeFeeLineItem:     true,
			},
			CategoryAutoInsuranceReIntake,
		},
		{
			"returning auto insurance without intake fee",
			VisitFacts{
				RegistrationDate:         day("2025-12-01"),
				VisitDate:                day("2025-12-10"),
				HasAutoInsuranceLineItem: true,
			},
			CategoryAutoInsurance,
		},
		{
			"new herbal: no copay, non-covered amount",
			VisitFacts{
				RegistrationDate: day("2025-12-10"),
				VisitDate:        day("2025-12-10"),
				NonCoveredAmount: 180000,
			},
			CategoryNewHerbal,
		},
		{
			"new patient with nothing billed",
			VisitFacts{
				RegistrationDate: day("2025-12-10"),
				VisitDate:        day("2025-12-10"),
			},
			CategoryOther,
		},
		{
			"returning re-intake",
			VisitFacts{
				RegistrationDate:     day("2025-12-01"),
				VisitDate:            day("2025-12-10"),
				HasIntakeFeeLineItem: true,
			},
			CategoryReturningReIntake,
		},
		{
			"returning patient without intake fee",
			VisitFacts{
				RegistrationDate: day("2025-12-01"),
				VisitDate:        day("2025-12-10"),
				CopayAmount:      5000,
			},
			CategoryOther,
		},
		{
			"missing dates",
			VisitFacts{CopayAmount: 5000},
			CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.facts); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestAutoInsuranceAlwaysAutoSubtype tests that an auto-insurance line item
// never classifies outside the auto-insurance subtypes
func TestAutoInsuranceAlwaysAutoSubtype(t *testing.T) {
	regDates := []string{"2025-12-10", "2025-12-01", "2025-01-15"}
	copays := []int64{0, 5000}
	nonCovered := []int64{0, 90000}
	intake := []bool{true, false}

	for _, reg := range regDates {
		for _, copay := range copays {
			for _, nc := range nonCovered {
				for _, in := range intake {
					facts := VisitFacts{
						RegistrationDate:         day(reg),
						VisitDate:                day("2025-12-10"),
						HasAutoInsuranceLineItem: true,
						HasIntakeFeeLineItem:     in,
						CopayAmount:              copay,
						NonCoveredAmount:         nc,
					}
					if got := Classify(facts); !got.IsAutoInsurance() {
						t.Errorf("facts %+v: expected auto-insurance subtype, got %s", facts, got)
					}
				}
			}
		}
	}
}

// TestClassifyIdempotent tests that classification has no hidden state
func TestClassifyIdempotent(t *testing.T) {
	facts := VisitFacts{
		RegistrationDate:     day("2025-12-01"),
		VisitDate:            day("2025-12-10"),
		HasIntakeFeeLineItem: true,
		CopayAmount:          5000,
	}

	first := Classify(facts)
	for i := 0; i < 10; i++ {
		if got := Classify(facts); got != first {
			t.Fatalf("classification changed between calls: %s then %s", first, got)
		}
	}
}

// TestClassifyTimeOfDayIgnored tests day-granularity date comparison
func TestClassifyTimeOfDayIgnored(t *testing.T) {
	facts := VisitFacts{
		RegistrationDate: day("2025-12-10").Add(9 * time.Hour),
		VisitDate:        day("2025-12-10").Add(17 * time.Hour),
		CopayAmount:      5000,
	}

	if got := Classify(facts); got != CategoryNewAcupuncture {
		t.Errorf("Expected %s, got %s", CategoryNewAcupuncture, got)
	}
}

// TestTagLineItem tests the backfill substring heuristic
func TestTagLineItem(t *testing.T) {
	tests := []struct {
		name string
		want LineItemCategory
	}{
		{"자동차보험 침술", LineItemAutoInsurance},
		{"일반진료관리", LineItemIntakeFee},
		{"초진 진찰료", LineItemIntakeFee},
		{"한약 1제", LineItemHerbal},
		{"탕전료", LineItemHerbal},
		{"부항", LineItemUnknown},
		{"", LineItemUnknown},
	}

	for _, tt := range tests {
		if got := TagLineItem(tt.name); got != tt.want {
			t.Errorf("TagLineItem(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
