package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/classifier"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// Quantitative scores a profile with the pre-trained classifier. The probability is the
// score; confidence is fixed because the model is deterministic.
type Quantitative struct {
	encoder    classifier.Encoder
	predictor  classifier.Predictor
	confidence float64
}

// NewQuantitative wires an encoder and predictor. confidence <= 0 means 1.0.
func NewQuantitative(encoder classifier.Encoder, predictor classifier.Predictor, confidence float64) *Quantitative {
	if confidence <= 0 || confidence > 1 {
		confidence = 1
	}
	return &Quantitative{encoder: encoder, predictor: predictor, confidence: confidence}
}

func (q *Quantitative) Kind() domain.Kind { return domain.KindQuantitative }

// Preflight rejects an encoder the model was not trained against, and a model whose
// versions cannot be read.
func (q *Quantitative) Preflight(ctx context.Context) error {
	if q.encoder == nil || q.predictor == nil {
		return domain.NewConfigurationError("quantitative evaluator needs an encoder and a predictor")
	}
	info, err := classifier.CheckCompatible(ctx, q.encoder, q.predictor)
	if errors.Is(err, classifier.ErrVersionMismatch) {
		return &domain.ConfigurationError{Reason: "classifier artifact incompatible with feature encoder", Err: err}
	}
	if err != nil {
		return &domain.ConfigurationError{Reason: "classifier compatibility could not be verified", Err: err}
	}
	logrus.WithFields(logrus.Fields{
		"model":   info.ModelVersion,
		"encoder": info.EncoderVersion,
	}).Debug("classifier compatible with feature encoder")
	return nil
}

func (q *Quantitative) Evaluate(ctx context.Context, p domain.StartupProfile, _ ExternalContext) domain.PartialAssessment {
	features, err := q.encoder.Encode(p)
	if err != nil {
		return failure(ctx, domain.KindQuantitative, fmt.Errorf("encode features: %w", err))
	}
	pred, err := q.predictor.Predict(ctx, features)
	if err != nil {
		if errors.Is(err, classifier.ErrVersionMismatch) {
			logrus.WithError(err).Error("classifier rejected feature vector")
			return failure(ctx, domain.KindQuantitative, fmt.Errorf("%w: predict: %w", domain.ErrMisconfigured, err))
		}
		return failure(ctx, domain.KindQuantitative, fmt.Errorf("predict: %w", err))
	}

	rationale := fmt.Sprintf("Classifier %s predicts %s with probability %.2f.", pred.ModelVersion, pred.Label, pred.Probability)
	return domain.Success(domain.KindQuantitative, pred.Probability, q.confidence, rationale, map[string]any{
		"label":           pred.Label,
		"probability":     pred.Probability,
		"model_version":   pred.ModelVersion,
		"encoder_version": features.Version,
	})
}
