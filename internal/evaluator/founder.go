package evaluator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// Founder segments, L1 (first-time, little relevant experience) to L5 (repeat founder
// with a significant exit).
var founderSegments = []string{"L1", "L2", "L3", "L4", "L5"}

var founderSchema = ai.Schema{
	Name: "founder_analysis",
	Fields: []ai.Field{
		{Name: "competency_score", Type: ai.FieldInteger, Min: 1, Max: 5, Required: true, Description: "overall founding team competency"},
		{Name: "segment", Type: ai.FieldEnum, Enum: founderSegments, Required: true, Description: "L1 first-time founder to L5 repeat founder with a large exit"},
		{Name: "idea_fit", Type: ai.FieldNumber, Min: 0, Max: 1, Required: true, Description: "how well the founders' backgrounds fit this idea"},
		{Name: "confidence", Type: ai.FieldNumber, Min: 0, Max: 1, Required: true},
		{Name: "strengths", Type: ai.FieldString},
		{Name: "challenges", Type: ai.FieldString},
		{Name: "rationale", Type: ai.FieldString, Required: true},
	},
}

const founderSystemPrompt = "You are a venture partner who assesses founding teams. Judge competency, relevant experience and the fit between the founders' backgrounds and the startup idea."

// Weights of the normalized competency score and idea fit in the founder score.
const (
	competencyWeight = 0.6
	ideaFitWeight    = 0.4
)

// Founder evaluates the founding team.
type Founder struct {
	reasoning
}

func NewFounder(reasoner ai.Reasoner) *Founder {
	return &Founder{reasoning: reasoning{kind: domain.KindFounder, reasoner: reasoner, schema: founderSchema}}
}

func (f *Founder) Kind() domain.Kind { return domain.KindFounder }

func (f *Founder) Evaluate(ctx context.Context, p domain.StartupProfile, ext ExternalContext) domain.PartialAssessment {
	var comparables []Comparable
	if ext != nil {
		comparables = ext.Comparables()
	}
	competency, segment, fit := founderSignals(p)
	prompt := ai.Prompt{
		System: founderSystemPrompt,
		User:   profileBlock(p) + "\n" + foundersBlock(p.Founders) + "\n" + comparablesBlock(comparables, 5),
		Signals: map[string]float64{
			"competency_score": competency,
			"segment":          segment,
			"idea_fit":         fit,
		},
	}

	resp, calls, err := f.complete(ctx, prompt)
	if err != nil {
		return failure(ctx, f.kind, err)
	}

	score := competencyWeight*normalize(resp.Float("competency_score"), 1, 5) + ideaFitWeight*resp.Float("idea_fit")
	confidence := resp.Float("confidence")
	if len(p.Founders) == 0 {
		confidence *= 0.6
	}
	return domain.Success(f.kind, score, confidence, resp.Text("rationale"), responseDetails(resp, calls))
}

func foundersBlock(founders []domain.Founder) string {
	if len(founders) == 0 {
		return "Founders: not disclosed.\n"
	}
	b := &strings.Builder{}
	b.WriteString("Founders:\n")
	for _, f := range founders {
		background := strings.TrimSpace(f.Background)
		if background == "" {
			background = "background not provided"
		}
		fmt.Fprintf(b, "- %s: %s\n", f.Name, background)
	}
	return b.String()
}

var experienceMarkers = []string{"founder", "co-founder", "exit", "acquired", "ceo", "cto", "vp", "director", "phd", "engineer", "lead"}

// founderSignals estimates competency 1..5, segment position 0..1 and idea fit 0..1.
func founderSignals(p domain.StartupProfile) (float64, float64, float64) {
	if len(p.Founders) == 0 {
		return 2, 0, 0.3
	}
	sector := strings.ToLower(p.Sector)
	var experience, fit float64
	for _, f := range p.Founders {
		bg := strings.ToLower(f.Background)
		hits := 0
		for _, marker := range experienceMarkers {
			if strings.Contains(bg, marker) {
				hits++
			}
		}
		experience += math.Min(float64(hits), 3) / 3
		for _, word := range strings.Fields(sector) {
			if len(word) > 2 && strings.Contains(bg, word) {
				fit++
				break
			}
		}
	}
	n := float64(len(p.Founders))
	experience /= n
	ideaFit := 0.3 + 0.7*fit/n
	return 1 + 4*experience, experience, ideaFit
}
