package report

import (
	"context"
	"time"

	"github.com/dahanmed/careops/internal/emr"
	"github.com/dahanmed/careops/internal/shared/metrics"
	"github.com/dahanmed/careops/internal/visit"
)

// FactsSource provides the visit facts a report is built from
type FactsSource interface {
	FetchVisitFacts(ctx context.Context, date time.Time) ([]emr.PatientVisitFacts, error)
}

// ClassifiedVisit is one patient's classified visit in a daily report
type ClassifiedVisit struct {
	PatientID   int64          `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	Category    visit.Category `json:"category"`
}

// DailyReport is the day's visit classification: per-category counts plus
// the classified visits themselves
type DailyReport struct {
	Date   string                 `json:"date"`
	Counts map[visit.Category]int `json:"counts"`
	Visits []ClassifiedVisit      `json:"visits"`
	Total  int                    `json:"total"`
}

// Builder builds daily classification reports from EMR visit facts
type Builder struct {
	source FactsSource
}

// NewBuilder creates a report builder
func NewBuilder(source FactsSource) *Builder {
	return &Builder{source: source}
}

// Daily classifies every visit of one day and tallies the categories
func (b *Builder) Daily(ctx context.Context, date time.Time) (*DailyReport, error) {
	facts, err := b.source.FetchVisitFacts(ctx, date)
	if err != nil {
		return nil, err
	}

	return build(date, facts), nil
}

func build(date time.Time, facts []emr.PatientVisitFacts) *DailyReport {
	report := &DailyReport{
		Date:   date.Format("2006-01-02"),
		Counts: make(map[visit.Category]int, len(visit.Categories)),
		Visits: make([]ClassifiedVisit, 0, len(facts)),
	}
	for _, c := range visit.Categories {
		report.Counts[c] = 0
	}

	for _, f := range facts {
		category := visit.Classify(f.Facts)
		metrics.RecordVisitClassified(string(category))

		report.Counts[category]++
		report.Visits = append(report.Visits, ClassifiedVisit{
			PatientID:   f.PatientID,
			PatientName: f.PatientName,
			Category:    category,
		})
	}
	report.Total = len(facts)

	return report
}
