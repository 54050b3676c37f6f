package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// Report is one persisted evaluation round. Rows are written once and never updated.
type Report struct {
	ID                string `gorm:"primaryKey;size:36"`
	Name              string `gorm:"size:255;index"`
	NameNormalized    string `gorm:"size:255;index"`
	Sector            string `gorm:"size:128;index"`
	Stage             string `gorm:"size:32;index"`
	ProfileJSON       string `gorm:"type:text"`
	Recommendation    string `gorm:"size:32;index"`
	CompositeScore    float64
	OverallConfidence float64
	HighDisagreement  bool
	Degraded          bool   `gorm:"index"`
	Reason            string `gorm:"type:text"`
	MissingJSON       string `gorm:"type:text"`
	MetadataJSON      string `gorm:"type:text"`
	StartedAt         time.Time
	FinishedAt        time.Time
	DurationMs        int64
	CreatedAt         time.Time    `gorm:"autoCreateTime"`
	Assessments       []Assessment `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

// Assessment is one evaluator output belonging to a Report.
type Assessment struct {
	ID          uint   `gorm:"primaryKey"`
	ReportID    string `gorm:"size:36;index"`
	Position    int
	Kind        string `gorm:"size:32;index"`
	Status      string `gorm:"size:16;index"`
	Score       float64
	Confidence  float64
	Rationale   string `gorm:"type:text"`
	Error       string `gorm:"type:text"`
	DetailsJSON string `gorm:"type:text"`
	Attempts    int
	DurationMs  int64
}

// NormalizeSector is the key used for sector filters and comparables.
func NormalizeSector(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// FromReport converts a domain report into rows.
func FromReport(r *domain.EvaluationReport) (Report, error) {
	profile, err := json.Marshal(r.Profile)
	if err != nil {
		return Report{}, fmt.Errorf("marshal profile: %w", err)
	}
	missing, err := json.Marshal(r.Decision.Missing)
	if err != nil {
		return Report{}, fmt.Errorf("marshal missing kinds: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return Report{}, fmt.Errorf("marshal metadata: %w", err)
	}
	row := Report{
		ID:                r.ID,
		Name:              strings.TrimSpace(r.Profile.Name),
		NameNormalized:    strings.ToLower(strings.TrimSpace(r.Profile.Name)),
		Sector:            NormalizeSector(r.Profile.Sector),
		Stage:             string(r.Profile.Stage),
		ProfileJSON:       string(profile),
		Recommendation:    string(r.Decision.Recommendation),
		CompositeScore:    r.Decision.CompositeScore,
		OverallConfidence: r.Decision.OverallConfidence,
		HighDisagreement:  r.Decision.HighDisagreement,
		Degraded:          r.Degraded,
		Reason:            r.Decision.Reason,
		MissingJSON:       string(missing),
		MetadataJSON:      string(metadata),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		DurationMs:        r.DurationMs,
	}
	for i, a := range r.Assessments {
		details, err := json.Marshal(a.Details)
		if err != nil {
			return Report{}, fmt.Errorf("marshal %s details: %w", a.Kind, err)
		}
		row.Assessments = append(row.Assessments, Assessment{
			ReportID:    r.ID,
			Position:    i,
			Kind:        string(a.Kind),
			Status:      string(a.Status),
			Score:       a.Score,
			Confidence:  a.Confidence,
			Rationale:   a.Rationale,
			Error:       a.Error,
			DetailsJSON: string(details),
			Attempts:    a.Attempts,
			DurationMs:  a.DurationMs,
		})
	}
	return row, nil
}

// ToDomain rebuilds the domain report. The contributing list is derived from the
// succeeded assessments.
func (r Report) ToDomain() (*domain.EvaluationReport, error) {
	out := &domain.EvaluationReport{
		ID:         r.ID,
		Degraded:   r.Degraded,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		DurationMs: r.DurationMs,
		Decision: domain.Decision{
			CompositeScore:    r.CompositeScore,
			Recommendation:    domain.Recommendation(r.Recommendation),
			OverallConfidence: r.OverallConfidence,
			HighDisagreement:  r.HighDisagreement,
			Reason:            r.Reason,
		},
	}
	if err := unmarshalText(r.ProfileJSON, &out.Profile); err != nil {
		return nil, fmt.Errorf("report %s profile: %w", r.ID, err)
	}
	if err := unmarshalText(r.MissingJSON, &out.Decision.Missing); err != nil {
		return nil, fmt.Errorf("report %s missing kinds: %w", r.ID, err)
	}
	if err := unmarshalText(r.MetadataJSON, &out.Metadata); err != nil {
		return nil, fmt.Errorf("report %s metadata: %w", r.ID, err)
	}

	var lo, hi float64
	for i, row := range r.Assessments {
		a := domain.PartialAssessment{
			Kind:       domain.Kind(row.Kind),
			Status:     domain.Status(row.Status),
			Score:      row.Score,
			Confidence: row.Confidence,
			Rationale:  row.Rationale,
			Error:      row.Error,
			Attempts:   row.Attempts,
			DurationMs: row.DurationMs,
		}
		if err := unmarshalText(row.DetailsJSON, &a.Details); err != nil {
			return nil, fmt.Errorf("report %s assessment %d details: %w", r.ID, i, err)
		}
		out.Assessments = append(out.Assessments, a)
		if a.Succeeded() {
			if len(out.Decision.Contributing) == 0 {
				lo, hi = a.Score, a.Score
			}
			lo, hi = min(lo, a.Score), max(hi, a.Score)
			out.Decision.Contributing = append(out.Decision.Contributing, a)
		}
	}
	out.Decision.Disagreement = hi - lo
	return out, nil
}

func unmarshalText(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}
