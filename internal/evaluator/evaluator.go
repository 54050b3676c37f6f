package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// Evaluator turns a profile into one partial assessment. Implementations never return
// errors: internal faults become failed or timed_out assessments.
type Evaluator interface {
	Kind() domain.Kind
	Evaluate(ctx context.Context, profile domain.StartupProfile, ext ExternalContext) domain.PartialAssessment
}

// Preflighter is implemented by evaluators with configuration that must be checked
// before a round dispatches. A *domain.ConfigurationError aborts the round.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// failure classifies err for kind. An expired deadline on ctx always yields timed_out.
func failure(ctx context.Context, kind domain.Kind, err error) domain.PartialAssessment {
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w: %v", domain.ErrEvaluatorTimeout, err)
	case domain.IsTimeout(err):
	case errors.Is(err, domain.ErrMisconfigured):
	case errors.Is(err, ai.ErrMalformed):
		err = fmt.Errorf("%w: malformed model response after retry: %v", domain.ErrEvaluatorFailure, err)
	default:
		err = fmt.Errorf("%w: %v", domain.ErrEvaluatorFailure, err)
	}
	return domain.Failure(kind, err)
}

// normalize maps v from the native scale [min,max] to [0,1].
func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return domain.Clamp01((v - min) / (max - min))
}
