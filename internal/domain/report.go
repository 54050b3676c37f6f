package domain

import "time"

// EvaluationReport is the immutable record of one evaluation round.
type EvaluationReport struct {
	ID          string              `json:"id"`
	Profile     StartupProfile      `json:"profile"`
	Assessments []PartialAssessment `json:"assessments"`
	Decision    Decision            `json:"decision"`
	Degraded    bool                `json:"degraded"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	DurationMs  int64               `json:"duration_ms"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
}

// Assessment returns the assessment produced by the given evaluator kind.
func (r *EvaluationReport) Assessment(kind Kind) (PartialAssessment, bool) {
	for _, a := range r.Assessments {
		if a.Kind == kind {
			return a, true
		}
	}
	return PartialAssessment{}, false
}

// StatusCounts tallies assessments per status.
func (r *EvaluationReport) StatusCounts() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, a := range r.Assessments {
		counts[a.Status]++
	}
	return counts
}
