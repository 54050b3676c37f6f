package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// Config tunes how partial assessments are combined. Weights are per evaluator kind;
// kinds without an explicit weight count as 1.
type Config struct {
	Weights               map[domain.Kind]float64 `yaml:"weights" json:"weights"`
	InvestThreshold       float64                 `yaml:"invest_threshold" json:"invest_threshold"`
	WatchThreshold        float64                 `yaml:"watch_threshold" json:"watch_threshold"`
	DisagreementThreshold float64                 `yaml:"disagreement_threshold" json:"disagreement_threshold"`
	MissingPenalty        float64                 `yaml:"missing_penalty" json:"missing_penalty"`
	// Required lists the non-optional kinds whose confidence caps the overall confidence.
	// Empty means every kind seen in the round is required.
	Required []domain.Kind `yaml:"-" json:"required"`
}

// DefaultConfig returns equal weights with invest >= 0.7, watch >= 0.4.
func DefaultConfig() Config {
	return Config{
		Weights: map[domain.Kind]float64{
			domain.KindMarket:       1,
			domain.KindFounder:      1,
			domain.KindProduct:      1,
			domain.KindQuantitative: 1,
		},
		InvestThreshold:       0.7,
		WatchThreshold:        0.4,
		DisagreementThreshold: 0.4,
		MissingPenalty:        0.25,
	}
}

// Validate rejects thresholds and weights that would make the recommendation ill-defined.
func (c Config) Validate() error {
	if c.WatchThreshold < 0 || c.InvestThreshold > 1 || c.WatchThreshold > c.InvestThreshold {
		return domain.NewConfigurationError("thresholds must satisfy 0 <= watch (%.2f) <= invest (%.2f) <= 1", c.WatchThreshold, c.InvestThreshold)
	}
	if c.DisagreementThreshold <= 0 || c.DisagreementThreshold > 1 {
		return domain.NewConfigurationError("disagreement threshold %.2f must be in (0,1]", c.DisagreementThreshold)
	}
	if c.MissingPenalty < 0 || c.MissingPenalty >= 1 {
		return domain.NewConfigurationError("missing penalty %.2f must be in [0,1)", c.MissingPenalty)
	}
	for kind, w := range c.Weights {
		if kind.Rank() == len(domain.AllKinds) {
			return domain.NewConfigurationError("weight configured for unknown kind %q", kind)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return domain.NewConfigurationError("weight for %s must be a finite non-negative number", kind)
		}
	}
	return nil
}

// Weight returns the configured weight for kind.
func (c Config) Weight(kind domain.Kind) float64 {
	if w, ok := c.Weights[kind]; ok {
		return w
	}
	return 1
}

// Recommend maps a composite score to a recommendation. It is monotone in score.
func (c Config) Recommend(score float64) domain.Recommendation {
	switch {
	case score >= c.InvestThreshold:
		return domain.RecommendationInvest
	case score >= c.WatchThreshold:
		return domain.RecommendationWatch
	default:
		return domain.RecommendationPass
	}
}

func (c Config) required(kind domain.Kind) bool {
	if len(c.Required) == 0 {
		return true
	}
	for _, k := range c.Required {
		if k == kind {
			return true
		}
	}
	return false
}

// Aggregator merges partial assessments into a Decision. It holds no mutable state.
type Aggregator struct {
	cfg Config
}

// NewAggregator validates cfg and returns an aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg}, nil
}

// Config exposes the aggregation settings.
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Aggregate computes the confidence-weighted composite score, recommendation, overall
// confidence and disagreement flag. The result does not depend on input order.
func (a *Aggregator) Aggregate(assessments []domain.PartialAssessment) (domain.Decision, error) {
	ordered := make([]domain.PartialAssessment, len(assessments))
	for i, item := range assessments {
		ordered[i] = item.Clone()
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Kind.Rank() != ordered[j].Kind.Rank() {
			return ordered[i].Kind.Rank() < ordered[j].Kind.Rank()
		}
		return ordered[i].Score < ordered[j].Score
	})

	var (
		survivors []domain.PartialAssessment
		missing   []domain.Kind
	)
	for _, item := range ordered {
		if item.Succeeded() {
			survivors = append(survivors, item)
			continue
		}
		missing = append(missing, item.Kind)
	}
	if len(survivors) == 0 {
		return domain.Decision{Missing: missing}, &domain.AggregationError{Reason: "no assessment succeeded"}
	}

	var num, den float64
	for _, s := range survivors {
		w := a.cfg.Weight(s.Kind) * s.Confidence
		num += s.Score * w
		den += w
	}
	if den <= 0 {
		return domain.Decision{Missing: missing}, &domain.AggregationError{Reason: "surviving assessments carry zero weighted confidence"}
	}
	composite := domain.Clamp01(num / den)

	low, high := survivors[0].Score, survivors[0].Score
	for _, s := range survivors[1:] {
		low = math.Min(low, s.Score)
		high = math.Max(high, s.Score)
	}
	spread := high - low

	return domain.Decision{
		CompositeScore:    composite,
		Recommendation:    a.cfg.Recommend(composite),
		OverallConfidence: a.overallConfidence(ordered, survivors),
		HighDisagreement:  spread > a.cfg.DisagreementThreshold,
		Disagreement:      spread,
		Contributing:      survivors,
		Missing:           missing,
	}, nil
}

// overallConfidence is capped by the lowest confidence among succeeded required
// assessments and multiplied by (1 - penalty) for each missing required assessment.
func (a *Aggregator) overallConfidence(all, survivors []domain.PartialAssessment) float64 {
	ceiling := math.Inf(1)
	missingRequired := 0
	for _, item := range all {
		if !a.cfg.required(item.Kind) {
			continue
		}
		if item.Succeeded() {
			ceiling = math.Min(ceiling, item.Confidence)
		} else {
			missingRequired++
		}
	}
	if math.IsInf(ceiling, 1) {
		ceiling = 1
		for _, s := range survivors {
			ceiling = math.Min(ceiling, s.Confidence)
		}
	}
	return domain.Clamp01(ceiling * math.Pow(1-a.cfg.MissingPenalty, float64(missingRequired)))
}

// String describes the thresholds for logs and the config endpoint.
func (c Config) String() string {
	return fmt.Sprintf("invest>=%.2f watch>=%.2f disagreement>%.2f penalty=%.2f", c.InvestThreshold, c.WatchThreshold, c.DisagreementThreshold, c.MissingPenalty)
}
