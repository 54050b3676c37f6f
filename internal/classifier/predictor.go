package classifier

import (
	"context"
	"errors"
	"fmt"
)

// ErrVersionMismatch is returned when a feature vector or encoder does not match what the
// model was trained on.
var ErrVersionMismatch = errors.New("encoder/model version mismatch")

const (
	LabelSuccess = "success"
	LabelFailure = "failure"
)

// Prediction is a classifier output.
type Prediction struct {
	Label        string  `json:"label"`
	Probability  float64 `json:"probability"`
	ModelVersion string  `json:"model_version"`
}

// ModelInfo describes a trained artifact.
type ModelInfo struct {
	ModelVersion   string `json:"model_version"`
	EncoderVersion string `json:"encoder_version"`
}

// Predictor scores encoded profiles.
type Predictor interface {
	Info(ctx context.Context) (ModelInfo, error)
	Predict(ctx context.Context, features Features) (Prediction, error)
}

// CheckCompatible verifies the predictor was trained against the encoder's layout.
func CheckCompatible(ctx context.Context, enc Encoder, p Predictor) (ModelInfo, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("read model info: %w", err)
	}
	if info.EncoderVersion != enc.Version() {
		return info, fmt.Errorf("%w: model %s expects encoder %q, have %q", ErrVersionMismatch, info.ModelVersion, info.EncoderVersion, enc.Version())
	}
	return info, nil
}

func labelFor(probability, threshold float64) string {
	if probability >= threshold {
		return LabelSuccess
	}
	return LabelFailure
}
