package api

import (
	"math"
	"time"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/store"
)

// AssessmentDTO is the API representation of one evaluator output.
type AssessmentDTO struct {
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"rationale"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts"`
	DurationMs int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
}

// DecisionDTO is the aggregated outcome of a round.
type DecisionDTO struct {
	Recommendation    string   `json:"recommendation"`
	CompositeScore    float64  `json:"composite_score"`
	OverallConfidence float64  `json:"overall_confidence"`
	HighDisagreement  bool     `json:"high_disagreement"`
	Disagreement      float64  `json:"disagreement"`
	Contributing      []string `json:"contributing"`
	Missing           []string `json:"missing"`
	Reason            string   `json:"reason,omitempty"`
}

// ReportDTO is the full API representation of an evaluation report.
type ReportDTO struct {
	ID          string                `json:"id"`
	Profile     domain.StartupProfile `json:"profile"`
	Decision    DecisionDTO           `json:"decision"`
	Assessments []AssessmentDTO       `json:"assessments"`
	Degraded    bool                  `json:"degraded"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
	DurationMs  int64                 `json:"duration_ms"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
}

// ReportSummaryDTO is the list view of a report.
type ReportSummaryDTO struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Sector            string         `json:"sector"`
	Stage             string         `json:"stage"`
	Recommendation    string         `json:"recommendation"`
	CompositeScore    float64        `json:"composite_score"`
	OverallConfidence float64        `json:"overall_confidence"`
	HighDisagreement  bool           `json:"high_disagreement"`
	Degraded          bool           `json:"degraded"`
	Statuses          map[string]int `json:"statuses"`
	FinishedAt        time.Time      `json:"finished_at"`
}

// ReportsResponse is a paginated report listing.
type ReportsResponse struct {
	Items []ReportSummaryDTO `json:"items"`
	Total int64              `json:"total"`
}

// EvaluateResponse wraps the report of a synchronous round.
type EvaluateResponse struct {
	Report ReportDTO `json:"report"`
	Saved  bool      `json:"saved"`
	Error  string    `json:"error,omitempty"`
}

// BatchEvaluateRequest starts an asynchronous job over several profiles.
type BatchEvaluateRequest struct {
	Profiles    []domain.StartupProfile `json:"profiles"`
	Concurrency int                     `json:"concurrency"`
}

// StartEvaluationResponse describes the asynchronous evaluation kickoff payload.
type StartEvaluationResponse struct {
	JobID     string    `json:"job_id"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// EvaluateStatusResponse describes the state of the active evaluation job.
type EvaluateStatusResponse struct {
	Running    bool              `json:"running"`
	JobID      string            `json:"job_id,omitempty"`
	State      string            `json:"state,omitempty"`
	Message    string            `json:"message,omitempty"`
	Processed  int               `json:"processed"`
	Failed     int               `json:"failed"`
	Total      int               `json:"total"`
	LastReport *ReportSummaryDTO `json:"last_report,omitempty"`
}

// FromReport converts a domain report into its DTO.
func FromReport(r *domain.EvaluationReport) ReportDTO {
	dto := ReportDTO{
		ID:         r.ID,
		Profile:    r.Profile,
		Decision:   decisionDTO(r.Decision),
		Degraded:   r.Degraded,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.DurationMs,
		Metadata:   r.Metadata,
	}
	dto.Assessments = make([]AssessmentDTO, 0, len(r.Assessments))
	for _, a := range r.Assessments {
		dto.Assessments = append(dto.Assessments, assessmentDTO(a))
	}
	return dto
}

// SummaryFromReport converts a domain report into its list view.
func SummaryFromReport(r *domain.EvaluationReport) ReportSummaryDTO {
	statuses := make(map[string]int, 3)
	for status, n := range r.StatusCounts() {
		statuses[string(status)] = n
	}
	return ReportSummaryDTO{
		ID:                r.ID,
		Name:              r.Profile.Name,
		Sector:            store.NormalizeSector(r.Profile.Sector),
		Stage:             string(r.Profile.Stage),
		Recommendation:    string(r.Decision.Recommendation),
		CompositeScore:    round3(r.Decision.CompositeScore),
		OverallConfidence: round3(r.Decision.OverallConfidence),
		HighDisagreement:  r.Decision.HighDisagreement,
		Degraded:          r.Degraded,
		Statuses:          statuses,
		FinishedAt:        r.FinishedAt,
	}
}

func assessmentDTO(a domain.PartialAssessment) AssessmentDTO {
	return AssessmentDTO{
		Kind:       string(a.Kind),
		Status:     string(a.Status),
		Score:      round3(a.Score),
		Confidence: round3(a.Confidence),
		Rationale:  a.Rationale,
		Error:      a.Error,
		Attempts:   a.Attempts,
		DurationMs: a.DurationMs,
		Details:    a.Details,
	}
}

func decisionDTO(d domain.Decision) DecisionDTO {
	out := DecisionDTO{
		Recommendation:    string(d.Recommendation),
		CompositeScore:    round3(d.CompositeScore),
		OverallConfidence: round3(d.OverallConfidence),
		HighDisagreement:  d.HighDisagreement,
		Disagreement:      round3(d.Disagreement),
		Contributing:      make([]string, 0, len(d.Contributing)),
		Missing:           make([]string, 0, len(d.Missing)),
		Reason:            d.Reason,
	}
	for _, a := range d.Contributing {
		out.Contributing = append(out.Contributing, string(a.Kind))
	}
	for _, kind := range d.Missing {
		out.Missing = append(out.Missing, string(kind))
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
