package scoring

import (
	"fmt"
	"strings"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// Quorum is the minimum set of evaluator kinds that must succeed for a round to yield a
// Decision. RequiredKinds must all succeed; at least MinQualitative qualitative kinds
// must succeed on top of that.
type Quorum struct {
	RequiredKinds  []domain.Kind `json:"required_kinds"`
	MinQualitative int           `json:"min_qualitative"`
}

// DefaultQuorum requires the classifier plus one qualitative evaluator.
func DefaultQuorum() Quorum {
	return Quorum{
		RequiredKinds:  []domain.Kind{domain.KindQuantitative},
		MinQualitative: 1,
	}
}

// Validate checks the quorum can be met by the configured evaluator kinds.
func (q Quorum) Validate(configured []domain.Kind) error {
	present := make(map[domain.Kind]bool, len(configured))
	qualitative := 0
	for _, kind := range configured {
		present[kind] = true
		if kind.Qualitative() {
			qualitative++
		}
	}
	for _, kind := range q.RequiredKinds {
		if !present[kind] {
			return domain.NewConfigurationError("required evaluator %q is not configured", kind)
		}
	}
	if q.MinQualitative < 0 || q.MinQualitative > qualitative {
		return domain.NewConfigurationError("quorum needs %d qualitative evaluators but %d are configured", q.MinQualitative, qualitative)
	}
	return nil
}

// Satisfied reports whether the assessments meet the quorum, and why not otherwise.
func (q Quorum) Satisfied(assessments []domain.PartialAssessment) (bool, string) {
	ok := make(map[domain.Kind]bool, len(assessments))
	qualitative := 0
	for _, a := range assessments {
		if !a.Succeeded() {
			continue
		}
		ok[a.Kind] = true
		if a.Kind.Qualitative() {
			qualitative++
		}
	}

	var unmet []string
	for _, kind := range q.RequiredKinds {
		if !ok[kind] {
			unmet = append(unmet, fmt.Sprintf("%s did not succeed", kind))
		}
	}
	if qualitative < q.MinQualitative {
		unmet = append(unmet, fmt.Sprintf("%d of %d required qualitative evaluators succeeded", qualitative, q.MinQualitative))
	}
	if len(unmet) > 0 {
		return false, "minimum evaluator quorum not met: " + strings.Join(unmet, "; ")
	}
	return true, ""
}
