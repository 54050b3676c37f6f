package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// EncoderVersion identifies the feature layout produced by FeatureEncoder.
const EncoderVersion = "ssff-features/v1"

// Sectors with a dedicated one-hot column. Anything else lands in sector_other.
var Sectors = []string{"fintech", "healthcare", "ai", "saas", "consumer", "climate", "biotech", "hardware"}

// Features is an encoded profile. Names and Values are parallel.
type Features struct {
	Version string    `json:"version"`
	Names   []string  `json:"names"`
	Values  []float64 `json:"values"`
}

// Map returns the features keyed by name.
func (f Features) Map() map[string]float64 {
	out := make(map[string]float64, len(f.Names))
	for i, name := range f.Names {
		if i < len(f.Values) {
			out[name] = f.Values[i]
		}
	}
	return out
}

// Encoder turns a profile into a versioned feature vector.
type Encoder interface {
	Version() string
	Encode(profile domain.StartupProfile) (Features, error)
}

// FeatureEncoder is the fixed v1 encoder.
type FeatureEncoder struct{}

func NewFeatureEncoder() *FeatureEncoder { return &FeatureEncoder{} }

func (e *FeatureEncoder) Version() string { return EncoderVersion }

// FeatureNames lists the v1 columns in order.
func FeatureNames() []string {
	names := []string{
		"log_funding",
		"log_team_size",
		"log_patents",
		"stage",
		"founder_count",
		"founder_background",
		"description_length",
	}
	for _, sector := range Sectors {
		names = append(names, "sector_"+sector)
	}
	return append(names, "sector_other")
}

func (e *FeatureEncoder) Encode(profile domain.StartupProfile) (Features, error) {
	m := profile.Metrics
	if m.FundingRaised < 0 || m.TeamSize < 0 || m.PatentCount < 0 {
		return Features{}, fmt.Errorf("encode %q: negative metrics", profile.Name)
	}
	stage := profile.Stage.Ordinal()
	if stage < 0 {
		return Features{}, fmt.Errorf("encode %q: unknown stage %q", profile.Name, profile.Stage)
	}

	withBackground := 0
	for _, f := range profile.Founders {
		if strings.TrimSpace(f.Background) != "" {
			withBackground++
		}
	}
	backgroundShare := 0.0
	if len(profile.Founders) > 0 {
		backgroundShare = float64(withBackground) / float64(len(profile.Founders))
	}

	values := []float64{
		math.Log1p(m.FundingRaised) / math.Log1p(1e9),
		math.Log1p(float64(m.TeamSize)) / math.Log1p(1000),
		math.Log1p(float64(m.PatentCount)) / math.Log1p(100),
		float64(stage) / 5,
		math.Min(float64(len(profile.Founders)), 5) / 5,
		backgroundShare,
		math.Min(float64(len(strings.Fields(profile.Description))), 300) / 300,
	}
	sector := SectorBucket(profile.Sector)
	for _, known := range Sectors {
		values = append(values, boolFloat(sector == known))
	}
	values = append(values, boolFloat(sector == "other"))

	for i := range values {
		values[i] = math.Min(1, values[i])
	}
	return Features{Version: EncoderVersion, Names: FeatureNames(), Values: values}, nil
}

// SectorBucket maps free-form sector labels onto the one-hot vocabulary.
func SectorBucket(sector string) string {
	s := strings.ToLower(sector)
	aliases := map[string][]string{
		"fintech":    {"fintech", "finance", "payments", "banking", "insurtech"},
		"healthcare": {"health", "medtech", "medical"},
		"ai":         {"ai", "artificial intelligence", "machine learning", "ml"},
		"saas":       {"saas", "software", "b2b", "enterprise"},
		"consumer":   {"consumer", "e-commerce", "ecommerce", "retail", "marketplace"},
		"climate":    {"climate", "energy", "cleantech", "sustainability"},
		"biotech":    {"biotech", "life sciences", "pharma"},
		"hardware":   {"hardware", "robotics", "iot", "semiconductor"},
	}
	for _, known := range Sectors {
		for _, alias := range aliases[known] {
			if containsWord(s, alias) {
				return known
			}
		}
	}
	return "other"
}

func containsWord(haystack, needle string) bool {
	fields := strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == '/' || r == ',' || r == '&' || r == '(' || r == ')'
	})
	if !strings.Contains(needle, " ") {
		for _, f := range fields {
			if f == needle {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.Join(fields, " "), needle)
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
