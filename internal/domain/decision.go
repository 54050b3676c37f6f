package domain

// Recommendation is the discrete outcome of a round.
type Recommendation string

const (
	RecommendationInvest       Recommendation = "invest"
	RecommendationWatch        Recommendation = "watch"
	RecommendationPass         Recommendation = "pass"
	RecommendationUndetermined Recommendation = "undetermined"
)

// Decision is the aggregator output for one round.
type Decision struct {
	CompositeScore    float64             `json:"composite_score"`
	Recommendation    Recommendation      `json:"recommendation"`
	OverallConfidence float64             `json:"overall_confidence"`
	HighDisagreement  bool                `json:"high_disagreement"`
	Disagreement      float64             `json:"disagreement"`
	Contributing      []PartialAssessment `json:"contributing"`
	Missing           []Kind              `json:"missing,omitempty"`
	Reason            string              `json:"reason,omitempty"`
}

// Determined reports whether the round produced a usable recommendation.
func (d Decision) Determined() bool {
	return d.Recommendation != "" && d.Recommendation != RecommendationUndetermined
}

// Undetermined marks the decision as undetermined while keeping any diagnostic score.
func (d Decision) Undetermined(reason string) Decision {
	d.Recommendation = RecommendationUndetermined
	d.Reason = reason
	return d
}
