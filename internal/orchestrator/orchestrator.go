package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/evaluator"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/scoring"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/util"
)

// ContextFactory builds the shared external context for one round.
type ContextFactory func(ctx context.Context, profile domain.StartupProfile) evaluator.ExternalContext

// Options configures an Orchestrator.
type Options struct {
	// Policies override DefaultPolicy per evaluator kind.
	Policies       map[domain.Kind]Policy
	DefaultPolicy  Policy
	RoundTimeout   time.Duration
	MaxConcurrency int
	Quorum         scoring.Quorum
	Context        ContextFactory
	Observer       Observer
}

// DefaultOptions returns a 120s round with the default quorum.
func DefaultOptions() Options {
	return Options{
		DefaultPolicy: DefaultPolicy(),
		RoundTimeout:  120 * time.Second,
		Quorum:        scoring.DefaultQuorum(),
	}
}

// Orchestrator drives evaluation rounds. It holds no per-round state and may run
// rounds concurrently.
type Orchestrator struct {
	evaluators []evaluator.Evaluator
	policies   []Policy
	aggregator *scoring.Aggregator
	opts       Options
}

// New validates the evaluator set against opts.
func New(evaluators []evaluator.Evaluator, aggregator *scoring.Aggregator, opts Options) (*Orchestrator, error) {
	if len(evaluators) == 0 {
		return nil, domain.NewConfigurationError("no evaluators configured")
	}
	if aggregator == nil {
		return nil, domain.NewConfigurationError("no aggregator configured")
	}
	if opts.RoundTimeout < 0 {
		return nil, domain.NewConfigurationError("round timeout must not be negative")
	}
	if opts.RoundTimeout == 0 {
		opts.RoundTimeout = DefaultOptions().RoundTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = max(len(evaluators), runtime.NumCPU())
	}
	if opts.DefaultPolicy == (Policy{}) {
		opts.DefaultPolicy = DefaultPolicy()
	}

	seen := make(map[domain.Kind]bool, len(evaluators))
	kinds := make([]domain.Kind, 0, len(evaluators))
	policies := make([]Policy, 0, len(evaluators))
	var required []domain.Kind
	for i, ev := range evaluators {
		if ev == nil {
			return nil, domain.NewConfigurationError("evaluator %d is nil", i)
		}
		kind := ev.Kind()
		if seen[kind] {
			return nil, domain.NewConfigurationError("evaluator kind %q configured twice", kind)
		}
		seen[kind] = true
		kinds = append(kinds, kind)

		policy, ok := opts.Policies[kind]
		if !ok {
			policy = opts.DefaultPolicy
		}
		if err := policy.Validate(kind); err != nil {
			return nil, err
		}
		policy = policy.withDefaults()
		policies = append(policies, policy)
		if !policy.Optional {
			required = append(required, kind)
		}
	}
	if err := opts.Quorum.Validate(kinds); err != nil {
		return nil, err
	}
	for _, kind := range opts.Quorum.RequiredKinds {
		for i, ev := range evaluators {
			if ev.Kind() == kind && policies[i].Optional {
				return nil, domain.NewConfigurationError("evaluator %q is required by the quorum but marked optional", kind)
			}
		}
	}

	if len(aggregator.Config().Required) == 0 {
		cfg := aggregator.Config()
		cfg.Required = required
		rebuilt, err := scoring.NewAggregator(cfg)
		if err != nil {
			return nil, err
		}
		aggregator = rebuilt
	}

	return &Orchestrator{
		evaluators: append([]evaluator.Evaluator(nil), evaluators...),
		policies:   policies,
		aggregator: aggregator,
		opts:       opts,
	}, nil
}

// Kinds lists the configured evaluator kinds in dispatch order.
func (o *Orchestrator) Kinds() []domain.Kind {
	out := make([]domain.Kind, len(o.evaluators))
	for i, ev := range o.evaluators {
		out[i] = ev.Kind()
	}
	return out
}

// Run evaluates profile with every configured evaluator. It returns *ValidationError or
// *ConfigurationError before any evaluator is invoked, and *EvaluationError together
// with the report when every evaluator failed. An evaluator reporting a configuration
// fault mid-round cancels the round and Run returns *ConfigurationError without a
// report. Otherwise the report is always returned.
func (o *Orchestrator) Run(ctx context.Context, profile domain.StartupProfile) (*domain.EvaluationReport, error) {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := o.preflight(ctx); err != nil {
		return nil, err
	}

	timer := util.StartTimer()
	roundID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"round": roundID, "startup": profile.Name})
	log.WithField("evaluators", len(o.evaluators)).Info("evaluation round started")

	roundCtx, cancel := context.WithTimeout(ctx, o.opts.RoundTimeout)
	defer cancel()

	var ext evaluator.ExternalContext
	if o.opts.Context != nil {
		ext = o.opts.Context(roundCtx, profile)
	}
	if ext == nil {
		ext = evaluator.NewRoundContext(nil, nil)
	}

	emitter := &emitter{observer: o.opts.Observer, roundID: roundID, startup: profile.Name, total: len(o.evaluators)}
	emitter.emit(Event{Type: EventStarted})

	results := make([]domain.PartialAssessment, len(o.evaluators))
	var (
		abortMu sync.Mutex
		abort   *domain.ConfigurationError
	)
	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)
	for i := range o.evaluators {
		i := i
		g.Go(func() error {
			res := o.invoke(roundCtx, ctx, i, profile.Clone(), ext)
			results[i] = res
			log.WithFields(logrus.Fields{
				"kind":        res.Kind,
				"status":      res.Status,
				"attempts":    res.Attempts,
				"duration_ms": res.DurationMs,
			}).Debug("assessment collected")
			emitter.assessment(res)
			if res.Misconfiguration != nil {
				abortMu.Lock()
				if abort == nil {
					abort = &domain.ConfigurationError{Reason: fmt.Sprintf("%s evaluator", res.Kind), Err: res.Misconfiguration}
				}
				abortMu.Unlock()
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if abort != nil {
		log.WithError(abort).WithField("duration_ms", timer.ElapsedMs()).Error("evaluation round aborted")
		emitter.emit(Event{Type: EventFailed, Message: abort.Error()})
		return nil, abort
	}

	report := &domain.EvaluationReport{
		ID:          roundID,
		Profile:     profile,
		Assessments: results,
		StartedAt:   timer.Started(),
		FinishedAt:  time.Now().UTC(),
		DurationMs:  timer.ElapsedMs(),
		Metadata: map[string]string{
			"round_timeout": o.opts.RoundTimeout.String(),
			"evaluators":    fmt.Sprint(len(o.evaluators)),
		},
	}
	for i, res := range results {
		if !o.policies[i].Optional && !res.Succeeded() {
			report.Degraded = true
		}
	}

	succeeded := 0
	for _, res := range results {
		if res.Succeeded() {
			succeeded++
		}
	}
	if succeeded == 0 {
		report.Decision = domain.Decision{}.Undetermined("all evaluators failed")
		for _, res := range results {
			report.Decision.Missing = append(report.Decision.Missing, res.Kind)
		}
		err := &domain.EvaluationError{RoundID: roundID, Reason: "all evaluators failed"}
		log.WithError(err).WithField("duration_ms", report.DurationMs).Error("evaluation round failed")
		emitter.emit(Event{Type: EventFailed, Report: report, Message: err.Error()})
		return report, err
	}

	report.Decision = o.decide(results)
	log.WithFields(logrus.Fields{
		"recommendation": report.Decision.Recommendation,
		"composite":      fmt.Sprintf("%.3f", report.Decision.CompositeScore),
		"confidence":     fmt.Sprintf("%.3f", report.Decision.OverallConfidence),
		"degraded":       report.Degraded,
		"duration_ms":    report.DurationMs,
	}).Info("evaluation round completed")
	emitter.emit(Event{Type: EventCompleted, Report: report})
	return report, nil
}

func (o *Orchestrator) decide(results []domain.PartialAssessment) domain.Decision {
	decision, err := o.aggregator.Aggregate(results)
	if err != nil {
		var aggErr *domain.AggregationError
		if !errors.As(err, &aggErr) {
			logrus.WithError(err).Warn("unexpected aggregation error")
		}
		return decision.Undetermined(err.Error())
	}
	if ok, reason := o.opts.Quorum.Satisfied(results); !ok {
		return decision.Undetermined(reason)
	}
	return decision
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	for _, ev := range o.evaluators {
		pf, ok := ev.(evaluator.Preflighter)
		if !ok {
			continue
		}
		if err := pf.Preflight(ctx); err != nil {
			var cfgErr *domain.ConfigurationError
			if errors.As(err, &cfgErr) {
				return err
			}
			return &domain.ConfigurationError{Reason: fmt.Sprintf("%s preflight", ev.Kind()), Err: err}
		}
	}
	return nil
}

// invoke runs evaluator i under its policy. roundCtx bounds the whole round; parent is
// the caller context, used to tell cancellation from round expiry.
func (o *Orchestrator) invoke(roundCtx, parent context.Context, i int, profile domain.StartupProfile, ext evaluator.ExternalContext) domain.PartialAssessment {
	ev := o.evaluators[i]
	policy := o.policies[i]
	kind := ev.Kind()
	timer := util.StartTimer()

	var res domain.PartialAssessment
	attempt := 0
	for attempt < policy.MaxAttempts {
		attempt++
		res = o.attempt(roundCtx, policy.Timeout, ev, profile, ext)
		if res.Status != domain.StatusFailed || res.Misconfiguration != nil || attempt == policy.MaxAttempts || roundCtx.Err() != nil {
			break
		}
		logrus.WithFields(logrus.Fields{"kind": kind, "attempt": attempt}).Debug("retrying failed evaluator")
		select {
		case <-roundCtx.Done():
		case <-time.After(util.Backoff(policy.Backoff, 10*time.Second, attempt)):
		}
	}
	if roundCtx.Err() != nil && parent.Err() == nil && !res.Succeeded() && res.Status != domain.StatusTimedOut && res.Misconfiguration == nil {
		res = domain.Failure(kind, fmt.Errorf("%w: round deadline exceeded", domain.ErrEvaluatorTimeout))
	}
	res.Attempts = attempt
	return res.Elapsed(timer.Elapsed())
}

// attempt calls the evaluator once. Evaluators that ignore their context are abandoned
// at the deadline; panics become failed assessments.
func (o *Orchestrator) attempt(ctx context.Context, timeout time.Duration, ev evaluator.Evaluator, profile domain.StartupProfile, ext evaluator.ExternalContext) domain.PartialAssessment {
	kind := ev.Kind()
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan domain.PartialAssessment, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("kind", kind).Errorf("evaluator panic: %v", r)
				done <- domain.Failure(kind, fmt.Errorf("%w: panic: %v", domain.ErrEvaluatorFailure, r))
			}
		}()
		done <- ev.Evaluate(attemptCtx, profile, ext)
	}()

	select {
	case res := <-done:
		return sanitize(kind, res)
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return domain.Failure(kind, fmt.Errorf("%w: no result within %s", domain.ErrEvaluatorTimeout, timeout))
		}
		return domain.Failure(kind, fmt.Errorf("%w: %v", domain.ErrEvaluatorFailure, attemptCtx.Err()))
	}
}

// sanitize enforces the assessment schema at the evaluator boundary.
func sanitize(kind domain.Kind, res domain.PartialAssessment) domain.PartialAssessment {
	if res.Kind != kind {
		return domain.Failure(kind, fmt.Errorf("%w: evaluator returned kind %q", domain.ErrEvaluatorFailure, res.Kind))
	}
	switch res.Status {
	case domain.StatusOK:
		return domain.Success(kind, res.Score, res.Confidence, res.Rationale, res.Clone().Details)
	case domain.StatusFailed, domain.StatusTimedOut:
		return res.Clone()
	default:
		return domain.Failure(kind, fmt.Errorf("%w: evaluator returned status %q", domain.ErrEvaluatorFailure, res.Status))
	}
}

type emitter struct {
	mu        sync.Mutex
	observer  Observer
	roundID   string
	startup   string
	total     int
	completed int
}

func (e *emitter) assessment(res domain.PartialAssessment) {
	snapshot := res.Clone()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed++
	e.emitLocked(Event{Type: EventAssessment, Assessment: &snapshot})
}

func (e *emitter) emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(event)
}

func (e *emitter) emitLocked(event Event) {
	if e.observer == nil {
		return
	}
	event.RoundID = e.roundID
	event.Startup = e.startup
	event.Total = e.total
	event.Completed = e.completed
	event.Timestamp = time.Now().UTC()
	e.observer.OnEvent(event)
}
