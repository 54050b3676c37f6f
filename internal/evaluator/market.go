package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/search"
)

// Evidence categories for market research documents.
const (
	CategoryFinancial = "financial"
	CategoryTrend     = "trend"
	CategoryGeneral   = "general"
)

var marketSchema = ai.Schema{
	Name: "market_analysis",
	Fields: []ai.Field{
		{Name: "viability_score", Type: ai.FieldInteger, Min: 1, Max: 10, Required: true, Description: "market viability, 10 is best"},
		{Name: "confidence", Type: ai.FieldNumber, Min: 0, Max: 1, Required: true, Description: "how well the evidence supports the score"},
		{Name: "market_size", Type: ai.FieldString, Description: "estimated market size in dollars"},
		{Name: "growth_rate", Type: ai.FieldString, Description: "annual market growth rate"},
		{Name: "competition", Type: ai.FieldString, Description: "competitive landscape"},
		{Name: "rationale", Type: ai.FieldString, Required: true, Description: "two or three sentences"},
	},
}

const marketSystemPrompt = "You are an experienced market analyst evaluating early-stage startups for a venture fund. Judge market size, growth, competition and timing from the research provided. Do not invent figures the research does not support."

// Market evaluates market viability from search evidence.
type Market struct {
	reasoning
	perQuery int
}

// NewMarket builds the market evaluator. perQuery caps documents kept per query.
func NewMarket(reasoner ai.Reasoner, perQuery int) *Market {
	if perQuery <= 0 {
		perQuery = 5
	}
	return &Market{
		reasoning: reasoning{kind: domain.KindMarket, reasoner: reasoner, schema: marketSchema},
		perQuery:  perQuery,
	}
}

func (m *Market) Kind() domain.Kind { return domain.KindMarket }

type marketQuery struct {
	text     string
	category string
}

// MarketQueries derives the research queries for a profile.
func MarketQueries(p domain.StartupProfile) []string {
	sector := strings.TrimSpace(p.Sector)
	return []string{
		fmt.Sprintf("%s market size", sector),
		fmt.Sprintf("%s industry growth forecast trends", sector),
		fmt.Sprintf("%s startup funding revenue valuation", sector),
		fmt.Sprintf("%s %s competitors", p.Name, sector),
	}
}

// CategorizeQuery buckets a query by the evidence it targets.
func CategorizeQuery(query string) string {
	q := strings.ToLower(query)
	for _, term := range []string{"funding", "revenue", "valuation", "financials"} {
		if strings.Contains(q, term) {
			return CategoryFinancial
		}
	}
	for _, term := range []string{"trend", "growth forecast", "emerging"} {
		if strings.Contains(q, term) {
			return CategoryTrend
		}
	}
	return CategoryGeneral
}

type evidence struct {
	byCategory  map[string][]search.Document
	total       int
	unavailable int
	queries     int
}

func (m *Market) gather(ctx context.Context, p domain.StartupProfile, ext ExternalContext) evidence {
	ev := evidence{byCategory: make(map[string][]search.Document)}
	if ext == nil {
		return ev
	}
	for _, text := range MarketQueries(p) {
		q := marketQuery{text: text, category: CategorizeQuery(text)}
		ev.queries++
		docs, err := ext.Documents(ctx, q.text)
		if err != nil {
			ev.unavailable++
			if !errors.Is(err, search.ErrDataUnavailable) {
				logrus.WithError(err).WithField("query", q.text).Warn("market research query failed")
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(docs) > m.perQuery {
			docs = docs[:m.perQuery]
		}
		ev.byCategory[q.category] = append(ev.byCategory[q.category], docs...)
		ev.total += len(docs)
	}
	return ev
}

func (ev evidence) knowledge() string {
	sections := []struct {
		category string
		title    string
	}{
		{CategoryFinancial, "Financial Research"},
		{CategoryTrend, "Market Trend Research"},
		{CategoryGeneral, "General Market Research"},
	}
	b := &strings.Builder{}
	for _, section := range sections {
		fmt.Fprintf(b, "## %s\n", section.title)
		docs := ev.byCategory[section.category]
		if len(docs) == 0 {
			b.WriteString("No data found.\n\n")
			continue
		}
		for _, d := range docs {
			fmt.Fprintf(b, "- %s (%s", d.Title, d.Source)
			if d.Date != "" {
				fmt.Fprintf(b, ", %s", d.Date)
			}
			fmt.Fprintf(b, "): %s\n", d.Snippet)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Market) Evaluate(ctx context.Context, p domain.StartupProfile, ext ExternalContext) domain.PartialAssessment {
	ev := m.gather(ctx, p, ext)
	if err := ctx.Err(); err != nil {
		return failure(ctx, m.kind, err)
	}

	var comparables []Comparable
	if ext != nil {
		comparables = ext.Comparables()
	}
	prompt := ai.Prompt{
		System: marketSystemPrompt,
		User: profileBlock(p) + "\n" + ev.knowledge() + "\n" + comparablesBlock(comparables, 5) +
			"\nRate the market viability of this startup on a scale of 1 to 10.",
		Signals: map[string]float64{"viability_score": marketSignal(p, ev)},
	}

	resp, calls, err := m.complete(ctx, prompt)
	if err != nil {
		return failure(ctx, m.kind, err)
	}

	viability := resp.Float("viability_score")
	confidence := resp.Float("confidence")
	degraded := ev.total == 0
	if degraded {
		confidence *= 0.7
	}
	details := responseDetails(resp, calls)
	details["evidence_financial"] = len(ev.byCategory[CategoryFinancial])
	details["evidence_trend"] = len(ev.byCategory[CategoryTrend])
	details["evidence_general"] = len(ev.byCategory[CategoryGeneral])
	details["queries_unavailable"] = ev.unavailable
	details["evidence_degraded"] = degraded

	return domain.Success(m.kind, normalize(viability, 1, 10), confidence, resp.Text("rationale"), details)
}

// marketSignal estimates viability 1..10 from stage, funding and how much evidence exists.
func marketSignal(p domain.StartupProfile, ev evidence) float64 {
	stage := float64(max(p.Stage.Ordinal(), 0)) / 5
	funding := math.Log1p(p.Metrics.FundingRaised) / math.Log1p(1e9)
	coverage := 0.0
	if ev.queries > 0 {
		coverage = float64(ev.queries-ev.unavailable) / float64(ev.queries)
	}
	return 1 + 9*domain.Clamp01(0.35*stage+0.4*funding+0.25*coverage)
}
