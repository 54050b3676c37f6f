package orchestrator

import (
	"time"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// MaxAttemptsCap bounds per-evaluator attempts in a round.
const MaxAttemptsCap = 3

// Policy is the declarative timeout and retry policy for one evaluator. Only failed
// attempts are retried; timed_out results are final.
type Policy struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff" json:"backoff"`
	// Optional evaluators do not count toward degradation or the confidence ceiling.
	Optional bool `yaml:"optional" json:"optional"`
}

// DefaultPolicy is a single 45s attempt.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     45 * time.Second,
		MaxAttempts: 1,
		Backoff:     500 * time.Millisecond,
	}
}

// Validate rejects policies that would stall or retry without bound.
func (p Policy) Validate(kind domain.Kind) error {
	if p.Timeout < 0 {
		return domain.NewConfigurationError("%s policy: timeout must not be negative", kind)
	}
	if p.MaxAttempts < 0 || p.MaxAttempts > MaxAttemptsCap {
		return domain.NewConfigurationError("%s policy: max_attempts %d outside 1..%d", kind, p.MaxAttempts, MaxAttemptsCap)
	}
	if p.Backoff < 0 {
		return domain.NewConfigurationError("%s policy: backoff must not be negative", kind)
	}
	return nil
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Timeout == 0 {
		p.Timeout = def.Timeout
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}
