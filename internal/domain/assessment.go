package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the evaluator variant that produced an assessment.
type Kind string

const (
	KindMarket       Kind = "market"
	KindFounder      Kind = "founder"
	KindProduct      Kind = "product"
	KindQuantitative Kind = "quantitative"
)

// AllKinds lists the evaluator variants in their canonical order.
var AllKinds = []Kind{KindMarket, KindFounder, KindProduct, KindQuantitative}

// Qualitative reports whether the kind is an LLM-reasoning evaluator.
func (k Kind) Qualitative() bool {
	return k == KindMarket || k == KindFounder || k == KindProduct
}

// Rank is the canonical position of the kind, used for deterministic ordering.
func (k Kind) Rank() int {
	for i, known := range AllKinds {
		if k == known {
			return i
		}
	}
	return len(AllKinds)
}

// ParseKind converts a configuration value into a Kind.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if kind.Rank() == len(AllKinds) {
		return "", fmt.Errorf("unknown evaluator kind %q", value)
	}
	return kind, nil
}

// Status is the outcome of one evaluator call.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// PartialAssessment is the output of one evaluator. Values are never mutated after the
// evaluator returns them.
type PartialAssessment struct {
	Kind       Kind           `json:"kind"`
	Status     Status         `json:"status"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"rationale"`
	Error      string         `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Attempts   int            `json:"attempts"`
	DurationMs int64          `json:"duration_ms"`

	// Misconfiguration is set when the failure wraps ErrMisconfigured.
	Misconfiguration error `json:"-"`
}

// Succeeded reports whether the assessment can enter the scoring pool.
func (a PartialAssessment) Succeeded() bool {
	return a.Status == StatusOK
}

// Clone copies the details map so the returned value shares nothing with a.
func (a PartialAssessment) Clone() PartialAssessment {
	out := a
	if a.Details != nil {
		out.Details = make(map[string]any, len(a.Details))
		for k, v := range a.Details {
			out.Details[k] = v
		}
	}
	return out
}

// Success builds an ok assessment with score and confidence clamped to [0,1].
func Success(kind Kind, score, confidence float64, rationale string, details map[string]any) PartialAssessment {
	return PartialAssessment{
		Kind:       kind,
		Status:     StatusOK,
		Score:      Clamp01(score),
		Confidence: Clamp01(confidence),
		Rationale:  strings.TrimSpace(rationale),
		Details:    details,
		Attempts:   1,
	}
}

// Failure converts an internal fault into a failed or timed_out assessment carrying a
// diagnostic rationale.
func Failure(kind Kind, err error) PartialAssessment {
	status := StatusFailed
	if IsTimeout(err) {
		status = StatusTimedOut
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	out := PartialAssessment{
		Kind:      kind,
		Status:    status,
		Rationale: fmt.Sprintf("%s evaluator %s: %s", kind, strings.ReplaceAll(string(status), "_", " "), msg),
		Error:     msg,
		Attempts:  1,
	}
	if errors.Is(err, ErrMisconfigured) {
		out.Misconfiguration = err
	}
	return out
}

// IsTimeout reports whether err stems from a deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrEvaluatorTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Clamp01 bounds v to [0,1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Elapsed stamps the duration on a copy of the assessment.
func (a PartialAssessment) Elapsed(d time.Duration) PartialAssessment {
	a.DurationMs = d.Milliseconds()
	return a
}
