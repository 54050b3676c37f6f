package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ssff.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport(id, name, sector string, rec domain.Recommendation, score float64, finished time.Time) *domain.EvaluationReport {
	market := domain.Success(domain.KindMarket, 0.6, 0.8, "growing market", map[string]any{"viability_score": 6})
	founder := domain.Success(domain.KindFounder, score, 0.7, "strong team", nil)
	product := domain.Failure(domain.KindProduct, domain.ErrEvaluatorFailure)
	quant := domain.Success(domain.KindQuantitative, 0.4, 0.9, "classifier", map[string]any{"label": "failure"})
	return &domain.EvaluationReport{
		ID: id,
		Profile: domain.StartupProfile{
			Name:        name,
			Sector:      sector,
			Stage:       domain.StageSeed,
			Description: "test startup",
		},
		Assessments: []domain.PartialAssessment{market, founder, product, quant},
		Decision: domain.Decision{
			CompositeScore:    score,
			Recommendation:    rec,
			OverallConfidence: 0.5,
			Missing:           []domain.Kind{domain.KindProduct},
		},
		Degraded:   true,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		DurationMs: 1000,
		Metadata:   map[string]string{"evaluators": "4"},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := sampleReport("r-1", "Ledgerly", "FinTech", domain.RecommendationWatch, 0.55, now)

	require.NoError(t, db.SaveReport(report))

	got, err := db.GetReport("r-1")
	require.NoError(t, err)
	assert.Equal(t, "Ledgerly", got.Profile.Name)
	assert.Equal(t, domain.RecommendationWatch, got.Decision.Recommendation)
	assert.Equal(t, []domain.Kind{domain.KindProduct}, got.Decision.Missing)
	assert.True(t, got.Degraded)
	assert.Equal(t, now, got.FinishedAt)
	assert.Equal(t, "4", got.Metadata["evaluators"])

	require.Len(t, got.Assessments, 4)
	kinds := make([]domain.Kind, 0, len(got.Assessments))
	for _, a := range got.Assessments {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []domain.Kind{domain.KindMarket, domain.KindFounder, domain.KindProduct, domain.KindQuantitative}, kinds)
	assert.Equal(t, domain.StatusFailed, got.Assessments[2].Status)
	assert.Len(t, got.Decision.Contributing, 3)
	assert.InDelta(t, 0.2, got.Decision.Disagreement, 1e-9)
	assert.Equal(t, "failure", got.Assessments[3].Details["label"])
}

func TestSaveReportIsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	report := sampleReport("dup", "Ledgerly", "fintech", domain.RecommendationPass, 0.2, time.Now().UTC())
	require.NoError(t, db.SaveReport(report))

	err := db.SaveReport(report)
	require.ErrorIs(t, err, ErrReportExists)

	count, err := db.CountReports()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGetReportNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetReport("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListReportsFiltersAndSorts(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fixtures := []struct {
		name   string
		sector string
		rec    domain.Recommendation
		score  float64
	}{
		{"Alpha", "fintech", domain.RecommendationInvest, 0.8},
		{"Bravo", "fintech", domain.RecommendationWatch, 0.5},
		{"Charlie", "health", domain.RecommendationPass, 0.2},
		{"Delta", "Fintech ", domain.RecommendationPass, 0.3},
	}
	for i, f := range fixtures {
		report := sampleReport(fmt.Sprintf("r-%d", i), f.name, f.sector, f.rec, f.score, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, db.SaveReport(report))
	}

	all, total, err := db.ListReports(ReportQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, all, 4)
	assert.Equal(t, "Delta", all[0].Profile.Name)

	fintech, total, err := db.ListReports(ReportQuery{Sector: "FINTECH", Sort: "score_desc"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, fintech, 3)
	assert.Equal(t, "Alpha", fintech[0].Profile.Name)
	assert.Equal(t, "Delta", fintech[2].Profile.Name)

	page, total, err := db.ListReports(ReportQuery{Recommendation: "pass", Sort: "name_asc", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Delta", page[0].Profile.Name)

	search, _, err := db.ListReports(ReportQuery{Query: "brav"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "Bravo", search[0].Profile.Name)
}

func TestComparablesExcludeSelfAndUndetermined(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveReport(sampleReport("a", "Alpha", "fintech", domain.RecommendationInvest, 0.8, base)))
	require.NoError(t, db.SaveReport(sampleReport("b", "Bravo", "fintech", domain.RecommendationUndetermined, 0.5, base.Add(time.Hour))))
	require.NoError(t, db.SaveReport(sampleReport("c", "Charlie", "fintech", domain.RecommendationPass, 0.2, base.Add(2*time.Hour))))
	require.NoError(t, db.SaveReport(sampleReport("d", "Delta", "health", domain.RecommendationWatch, 0.5, base)))

	comparables, err := db.Comparables("FinTech", "charlie", 5)
	require.NoError(t, err)
	require.Len(t, comparables, 1)
	assert.Equal(t, "Alpha", comparables[0].Name)
	assert.Equal(t, domain.RecommendationInvest, comparables[0].Recommendation)
	assert.Equal(t, base, comparables[0].EvaluatedAt)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.SaveReport(sampleReport("a", "Alpha", "fintech", domain.RecommendationInvest, 0.8, now)))
	require.NoError(t, db.SaveReport(sampleReport("b", "Bravo", "fintech", domain.RecommendationPass, 0.2, now)))
	require.NoError(t, db.SaveReport(sampleReport("c", "Charlie", "health", domain.RecommendationPass, 0.3, now)))

	stats, err := db.Stats(ReportQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.Degraded)
	require.Len(t, stats.Recommendations, 2)
	assert.Equal(t, "pass", stats.Recommendations[0].Recommendation)
	assert.EqualValues(t, 2, stats.Recommendations[0].Count)
	assert.InDelta(t, 0.25, stats.Recommendations[0].AvgComposite, 1e-9)
	require.Len(t, stats.Sectors, 2)
	assert.Equal(t, "fintech", stats.Sectors[0].Sector)
	assert.EqualValues(t, 1, stats.Sectors[0].Invest)
	assert.InDelta(t, 1.0, stats.FailureRates["product"], 1e-9)
	assert.InDelta(t, 0.0, stats.FailureRates["market"], 1e-9)

	fintech, err := db.Stats(ReportQuery{Sector: "fintech"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, fintech.Total)

	for _, text := range []string{"heal", "ALPH"} {
		listed, total, err := db.ListReports(ReportQuery{Query: text})
		require.NoError(t, err)
		filtered, err := db.Stats(ReportQuery{Query: text})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total, text)
		assert.Len(t, listed, 1, text)
		assert.Equal(t, total, filtered.Total, text)
	}
}
