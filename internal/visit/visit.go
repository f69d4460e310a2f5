package visit

import (
	"strings"
	"time"
)

// Category is the single classification assigned to a visit.
type Category string

const (
	CategoryNewAcupuncture        Category = "new_acupuncture"
	CategoryNewAutoInsurance      Category = "new_auto_insurance"
	CategoryAutoInsuranceReIntake Category = "auto_insurance_re_intake"
	CategoryAutoInsurance         Category = "auto_insurance"
	CategoryNewHerbal             Category = "new_herbal"
	CategoryReturningReIntake     Category = "returning_re_intake"
	CategoryOther                 Category = "other"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryNewAcupuncture,
	CategoryNewAutoInsurance,
	CategoryAutoInsuranceReIntake,
	CategoryAutoInsurance,
	CategoryNewHerbal,
	CategoryReturningReIntake,
	CategoryOther,
}

// IsAutoInsurance reports whether the category is one of the auto-insurance
// subtypes.
func (c Category) IsAutoInsurance() bool {
	switch c {
	case CategoryNewAutoInsurance, CategoryAutoInsuranceReIntake, CategoryAutoInsurance:
		return true
	}
	return false
}

// VisitFacts are the typed inputs to classification, derived from the EMR's
// registration and transaction rows for one (patient, date) pair.
type VisitFacts struct {
	RegistrationDate time.Time
	VisitDate        time.Time

	HasAutoInsuranceLineItem bool
	HasIntakeFeeLineItem     bool

	// Amounts in KRW. Negative values are treated as zero.
	CopayAmount      int64
	NonCoveredAmount int64
}

// LineItemCategory is an enumerated tag for an EMR billing line item. New
// rows should carry the tag from the point of recording; TagLineItem exists
// only to backfill it from the legacy free-text item names.
type LineItemCategory string

const (
	LineItemUnknown       LineItemCategory = "unknown"
	LineItemAutoInsurance LineItemCategory = "auto_insurance"
	LineItemIntakeFee     LineItemCategory = "intake_fee"
	LineItemHerbal        LineItemCategory = "herbal"
	LineItemCovered       LineItemCategory = "covered_treatment"
)

// TagLineItem maps a legacy free-text item name to a LineItemCategory. The
// substring rules mirror what the EMR reports used; they are a backfill
// heuristic, not a contract.
func TagLineItem(name string) LineItemCategory {
	switch {
	case strings.Contains(name, "자동차보험"):
		return LineItemAutoInsurance
	case name == "일반진료관리" || strings.Contains(name, "초진"):
		return LineItemIntakeFee
	case strings.Contains(name, "한약") || strings.Contains(name, "탕전"):
		return LineItemHerbal
	}
	return LineItemUnknown
}

// Classify assigns exactly one category to a visit.
//
// The legacy reports applied these predicates in inconsistent orders; this is
// the one canonical order, first match wins:
//
//  1. any auto-insurance line item -> an auto-insurance subtype, split by
//     registration date (new) or a same-day intake fee (re-intake)
//  2. registered today with a copay -> new acupuncture
//  3. registered today, no copay, non-covered amount -> new herbal
//  4. returning patient billed an intake fee -> returning re-intake
//  5. everything else -> other
//
// Classify is pure: same facts, same category. Missing or zero-valued fields
// fall through to CategoryOther rather than failing, because the upstream
// line-item data is noisy.
func Classify(f VisitFacts) Category {
	sameDay := !f.RegistrationDate.IsZero() && !f.VisitDate.IsZero() &&
		dateOf(f.RegistrationDate).Equal(dateOf(f.VisitDate))
	returning := !f.RegistrationDate.IsZero() && !f.VisitDate.IsZero() &&
		dateOf(f.RegistrationDate).Before(dateOf(f.VisitDate))

	if f.HasAutoInsuranceLineItem {
		switch {
		case sameDay:
			return CategoryNewAutoInsurance
		case returning && f.HasIntakeFeeLineItem:
			return CategoryAutoInsuranceReIntake
		default:
			return CategoryAutoInsurance
		}
	}

	if sameDay && f.CopayAmount > 0 {
		return CategoryNewAcupuncture
	}

	if sameDay && f.CopayAmount <= 0 && f.NonCoveredAmount > 0 {
		return CategoryNewHerbal
	}

	if returning && f.HasIntakeFeeLineItem {
		return CategoryReturningReIntake
	}

	return CategoryOther
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
