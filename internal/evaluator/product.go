package evaluator

import (
	"context"
	"fmt"
	"math"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

var productSchema = ai.Schema{
	Name: "product_analysis",
	Fields: []ai.Field{
		{Name: "potential_score", Type: ai.FieldInteger, Min: 1, Max: 10, Required: true, Description: "commercial potential of the product"},
		{Name: "innovation_score", Type: ai.FieldInteger, Min: 1, Max: 10, Required: true, Description: "novelty and defensibility"},
		{Name: "market_fit_score", Type: ai.FieldInteger, Min: 1, Max: 10, Required: true, Description: "fit with customer needs"},
		{Name: "confidence", Type: ai.FieldNumber, Min: 0, Max: 1, Required: true},
		{Name: "rationale", Type: ai.FieldString, Required: true},
	},
}

const productSystemPrompt = "You are a product strategist reviewing startup products. Judge commercial potential, innovation and product-market fit from the description and any public information."

// Product evaluates product strength.
type Product struct {
	reasoning
}

func NewProduct(reasoner ai.Reasoner) *Product {
	return &Product{reasoning: reasoning{kind: domain.KindProduct, reasoner: reasoner, schema: productSchema}}
}

func (p *Product) Kind() domain.Kind { return domain.KindProduct }

func (p *Product) Evaluate(ctx context.Context, profile domain.StartupProfile, ext ExternalContext) domain.PartialAssessment {
	var (
		public      string
		comparables []Comparable
	)
	if ext != nil {
		comparables = ext.Comparables()
		docs, err := ext.Documents(ctx, fmt.Sprintf("%s %s product", profile.Name, profile.Sector))
		if err == nil && len(docs) > 0 {
			public = "Public information:\n"
			for i, d := range docs {
				if i == 3 {
					break
				}
				public += fmt.Sprintf("- %s (%s): %s\n", d.Title, d.Source, d.Snippet)
			}
		}
	}
	if public == "" {
		public = "No public product information found.\n"
	}

	innovation := 1 + 9*math.Min(math.Log1p(float64(profile.Metrics.PatentCount))/math.Log1p(20), 1)
	stage := float64(max(profile.Stage.Ordinal(), 0))
	prompt := ai.Prompt{
		System: productSystemPrompt,
		User:   profileBlock(profile) + "\n" + public + "\n" + comparablesBlock(comparables, 3),
		Signals: map[string]float64{
			"potential_score":  4 + stage,
			"innovation_score": innovation,
			"market_fit_score": 3 + stage,
		},
	}

	resp, calls, err := p.complete(ctx, prompt)
	if err != nil {
		return failure(ctx, p.kind, err)
	}

	score := (normalize(resp.Float("potential_score"), 1, 10) +
		normalize(resp.Float("innovation_score"), 1, 10) +
		normalize(resp.Float("market_fit_score"), 1, 10)) / 3
	return domain.Success(p.kind, score, resp.Float("confidence"), resp.Text("rationale"), responseDetails(resp, calls))
}
