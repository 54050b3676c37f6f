package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

//go:embed default_model.json
var defaultArtifact []byte

// LinearModel is a logistic regression artifact loaded from JSON.
type LinearModel struct {
	ModelVersion   string             `json:"model_version"`
	EncoderVersion string             `json:"encoder_version"`
	Bias           float64            `json:"bias"`
	Threshold      float64            `json:"threshold"`
	Weights        map[string]float64 `json:"weights"`
}

// LoadLinearModel reads an artifact from path. An empty path loads the bundled model.
func LoadLinearModel(path string) (*LinearModel, error) {
	data := defaultArtifact
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read model artifact: %w", err)
		}
		data = raw
	}
	return ParseLinearModel(data)
}

// ParseLinearModel decodes and validates an artifact.
func ParseLinearModel(data []byte) (*LinearModel, error) {
	var model LinearModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if model.ModelVersion == "" || model.EncoderVersion == "" {
		return nil, fmt.Errorf("model artifact must declare model_version and encoder_version")
	}
	if len(model.Weights) == 0 {
		return nil, fmt.Errorf("model artifact %s has no weights", model.ModelVersion)
	}
	for name, w := range model.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("model artifact %s: weight %s is not finite", model.ModelVersion, name)
		}
	}
	if model.Threshold <= 0 || model.Threshold >= 1 {
		model.Threshold = 0.5
	}
	return &model, nil
}

func (m *LinearModel) Info(ctx context.Context) (ModelInfo, error) {
	return ModelInfo{ModelVersion: m.ModelVersion, EncoderVersion: m.EncoderVersion}, nil
}

// Predict applies the logistic function to the weighted feature sum. Every weighted
// feature must be present in the vector.
func (m *LinearModel) Predict(ctx context.Context, features Features) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if features.Version != m.EncoderVersion {
		return Prediction{}, fmt.Errorf("%w: features %q, model %s expects %q", ErrVersionMismatch, features.Version, m.ModelVersion, m.EncoderVersion)
	}
	values := features.Map()
	names := make([]string, 0, len(m.Weights))
	for name := range m.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	z := m.Bias
	for _, name := range names {
		v, ok := values[name]
		if !ok {
			return Prediction{}, fmt.Errorf("%w: feature %q missing from vector", ErrVersionMismatch, name)
		}
		z += m.Weights[name] * v
	}
	p := 1 / (1 + math.Exp(-z))
	return Prediction{
		Label:        labelFor(p, m.Threshold),
		Probability:  p,
		ModelVersion: m.ModelVersion,
	}, nil
}
