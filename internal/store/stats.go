package store

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// RecommendationCount is one bucket of the recommendation histogram.
type RecommendationCount struct {
	Recommendation string  `json:"recommendation"`
	Count          int64   `json:"count"`
	AvgComposite   float64 `json:"avg_composite"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// SectorSummary aggregates reports per sector.
type SectorSummary struct {
	Sector       string  `json:"sector"`
	Count        int64   `json:"count"`
	Invest       int64   `json:"invest"`
	AvgComposite float64 `json:"avg_composite"`
}

// Stats summarizes stored reports.
type Stats struct {
	Total            int64                 `json:"total"`
	Degraded         int64                 `json:"degraded"`
	HighDisagreement int64                 `json:"high_disagreement"`
	Recommendations  []RecommendationCount `json:"recommendations"`
	Sectors          []SectorSummary       `json:"sectors"`
	FailureRates     map[string]float64    `json:"failure_rates"`
}

// Stats computes aggregate counts honoring the sector, recommendation and degraded
// filters of q.
func (d *Database) Stats(q ReportQuery) (Stats, error) {
	var stats Stats

	totals := filterReports(sq.Select(
		"COUNT(*) AS total",
		"COALESCE(SUM(CASE WHEN degraded THEN 1 ELSE 0 END), 0) AS degraded",
		"COALESCE(SUM(CASE WHEN high_disagreement THEN 1 ELSE 0 END), 0) AS high_disagreement",
	).From("reports"), q)
	var counts reportTotals
	if err := d.raw(totals, &counts); err != nil {
		return Stats{}, fmt.Errorf("report totals: %w", err)
	}
	stats.Total = counts.Total
	stats.Degraded = counts.Degraded
	stats.HighDisagreement = counts.HighDisagreement

	recs := filterReports(sq.Select(
		"recommendation",
		"COUNT(*) AS count",
		"AVG(composite_score) AS avg_composite",
		"AVG(overall_confidence) AS avg_confidence",
	).From("reports").GroupBy("recommendation").OrderBy("count DESC", "recommendation ASC"), q)
	if err := d.raw(recs, &stats.Recommendations); err != nil {
		return Stats{}, fmt.Errorf("recommendation stats: %w", err)
	}

	sectors := filterReports(sq.Select(
		"sector",
		"COUNT(*) AS count",
		"SUM(CASE WHEN recommendation = 'invest' THEN 1 ELSE 0 END) AS invest",
		"AVG(composite_score) AS avg_composite",
	).From("reports").GroupBy("sector").OrderBy("count DESC", "sector ASC"), q)
	if err := d.raw(sectors, &stats.Sectors); err != nil {
		return Stats{}, fmt.Errorf("sector stats: %w", err)
	}

	var failures []kindFailures
	kinds := sq.Select(
		"assessments.kind AS kind",
		"COUNT(*) AS total",
		"SUM(CASE WHEN assessments.status <> 'ok' THEN 1 ELSE 0 END) AS failed",
	).From("assessments").
		Join("reports ON reports.id = assessments.report_id").
		GroupBy("assessments.kind")
	kinds = filterReports(kinds, q)
	if err := d.raw(kinds, &failures); err != nil {
		return Stats{}, fmt.Errorf("failure rates: %w", err)
	}
	stats.FailureRates = make(map[string]float64, len(failures))
	for _, f := range failures {
		if f.Total > 0 {
			stats.FailureRates[f.Kind] = float64(f.Failed) / float64(f.Total)
		}
	}
	return stats, nil
}

type reportTotals struct {
	Total            int64
	Degraded         int64
	HighDisagreement int64
}

type kindFailures struct {
	Kind   string
	Total  int64
	Failed int64
}

func filterReports(b sq.SelectBuilder, q ReportQuery) sq.SelectBuilder {
	if sector := NormalizeSector(q.Sector); sector != "" {
		b = b.Where(sq.Eq{"reports.sector": sector})
	}
	if rec := strings.TrimSpace(q.Recommendation); rec != "" {
		b = b.Where(sq.Eq{"reports.recommendation": strings.ToLower(rec)})
	}
	if q.Degraded != nil {
		b = b.Where(sq.Eq{"reports.degraded": *q.Degraded})
	}
	if text := strings.TrimSpace(q.Query); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		b = b.Where(sq.Or{
			sq.Like{"reports.name_normalized": like},
			sq.Like{"reports.sector": like},
		})
	}
	return b
}

func (d *Database) raw(b sq.SelectBuilder, dest any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return d.gorm.Raw(query, args...).Scan(dest).Error
}
