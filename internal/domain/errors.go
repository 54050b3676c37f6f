package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEvaluatorFailure classifies a network, model or transport fault inside an evaluator.
	ErrEvaluatorFailure = errors.New("evaluator failure")
	// ErrEvaluatorTimeout classifies an evaluator call that exceeded its deadline.
	ErrEvaluatorTimeout = errors.New("evaluator timeout")
	// ErrMisconfigured marks an evaluator fault caused by configuration, such as an
	// encoder the model was not trained against. It aborts the round.
	ErrMisconfigured = errors.New("evaluator misconfigured")
)

// ValidationError reports a malformed StartupProfile. It is raised before dispatch.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid startup profile"
	}
	return "invalid startup profile: " + strings.Join(e.Problems, "; ")
}

// ConfigurationError reports misconfiguration (missing evaluator, encoder/model version
// mismatch, inconsistent thresholds). It aborts the round.
type ConfigurationError struct {
	Reason string
	Err    error
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AggregationError is returned when no assessment survives for scoring.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregation failed: " + e.Reason
}

// EvaluationError is returned when every evaluator of a round failed.
type EvaluationError struct {
	RoundID string
	Reason  string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation round %s failed: %s", e.RoundID, e.Reason)
}

// IsHardFailure reports whether err belongs to the classes that escape a round as an
// outright failure response.
func IsHardFailure(err error) bool {
	var validation *ValidationError
	var configuration *ConfigurationError
	return errors.As(err, &validation) || errors.As(err, &configuration)
}
