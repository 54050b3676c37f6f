package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Stage is the funding stage of a startup.
type Stage string

const (
	StagePreSeed Stage = "pre-seed"
	StageSeed    Stage = "seed"
	StageSeriesA Stage = "series-a"
	StageSeriesB Stage = "series-b"
	StageSeriesC Stage = "series-c"
	StageGrowth  Stage = "growth"
)

var knownStages = []Stage{StagePreSeed, StageSeed, StageSeriesA, StageSeriesB, StageSeriesC, StageGrowth}

// Ordinal returns the position of the stage in the funding ladder, or -1 when unknown.
func (s Stage) Ordinal() int {
	for i, known := range knownStages {
		if s == known {
			return i
		}
	}
	return -1
}

// ParseStage normalizes free-form stage labels ("Series A", "series_a") to a Stage.
func ParseStage(value string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)
	if normalized == "preseed" {
		normalized = string(StagePreSeed)
	}
	stage := Stage(normalized)
	if stage.Ordinal() < 0 {
		return "", fmt.Errorf("unknown stage %q", value)
	}
	return stage, nil
}

// Founder describes one member of the founding team.
type Founder struct {
	Name       string `json:"name" yaml:"name"`
	Background string `json:"background,omitempty" yaml:"background"`
}

// Metrics holds the structured numeric signals of a profile.
type Metrics struct {
	FundingRaised float64 `json:"funding_raised" yaml:"funding_raised"`
	TeamSize      int     `json:"team_size" yaml:"team_size"`
	PatentCount   int     `json:"patent_count" yaml:"patent_count"`
}

// StartupProfile is the immutable input of one evaluation round.
type StartupProfile struct {
	Name        string    `json:"name" yaml:"name"`
	Sector      string    `json:"sector" yaml:"sector"`
	Stage       Stage     `json:"stage" yaml:"stage"`
	Description string    `json:"description" yaml:"description"`
	Metrics     Metrics   `json:"metrics" yaml:"metrics"`
	Founders    []Founder `json:"founders,omitempty" yaml:"founders"`
	Links       []string  `json:"links,omitempty" yaml:"links"`
}

// Normalize trims free-text fields and canonicalizes the stage. Invalid stages are left
// untouched so Validate can report them.
func (p StartupProfile) Normalize() StartupProfile {
	out := p.Clone()
	out.Name = strings.TrimSpace(out.Name)
	out.Sector = strings.TrimSpace(out.Sector)
	out.Description = strings.TrimSpace(out.Description)
	if stage, err := ParseStage(string(out.Stage)); err == nil {
		out.Stage = stage
	}
	for i := range out.Founders {
		out.Founders[i].Name = strings.TrimSpace(out.Founders[i].Name)
		out.Founders[i].Background = strings.TrimSpace(out.Founders[i].Background)
	}
	for i := range out.Links {
		out.Links[i] = strings.TrimSpace(out.Links[i])
	}
	return out
}

// Clone returns a deep copy so callers never share slices with the original.
func (p StartupProfile) Clone() StartupProfile {
	out := p
	if p.Founders != nil {
		out.Founders = append([]Founder(nil), p.Founders...)
	}
	if p.Links != nil {
		out.Links = append([]string(nil), p.Links...)
	}
	return out
}

// Validate checks the profile schema and reports every problem at once.
func (p StartupProfile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(p.Sector) == "" {
		problems = append(problems, "sector is required")
	}
	if p.Stage.Ordinal() < 0 {
		problems = append(problems, fmt.Sprintf("stage %q is not one of %s", p.Stage, joinStages()))
	}
	if strings.TrimSpace(p.Description) == "" {
		problems = append(problems, "description is required")
	}
	if p.Metrics.FundingRaised < 0 {
		problems = append(problems, "metrics.funding_raised must not be negative")
	}
	if p.Metrics.TeamSize < 0 {
		problems = append(problems, "metrics.team_size must not be negative")
	}
	if p.Metrics.PatentCount < 0 {
		problems = append(problems, "metrics.patent_count must not be negative")
	}
	for i, founder := range p.Founders {
		if strings.TrimSpace(founder.Name) == "" {
			problems = append(problems, fmt.Sprintf("founders[%d].name is required", i))
		}
	}
	for i, link := range p.Links {
		parsed, err := url.Parse(strings.TrimSpace(link))
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			problems = append(problems, fmt.Sprintf("links[%d] must be an absolute http(s) URL", i))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func joinStages() string {
	names := make([]string, 0, len(knownStages))
	for _, stage := range knownStages {
		names = append(names, string(stage))
	}
	return strings.Join(names, ", ")
}
