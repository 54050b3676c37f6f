package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/classifier"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/evaluator"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/scoring"
)

type stubEvaluator struct {
	kind  domain.Kind
	calls int32
	fn    func(ctx context.Context, call int32) domain.PartialAssessment
}

func (s *stubEvaluator) Kind() domain.Kind { return s.kind }

func (s *stubEvaluator) Evaluate(ctx context.Context, _ domain.StartupProfile, _ evaluator.ExternalContext) domain.PartialAssessment {
	call := atomic.AddInt32(&s.calls, 1)
	return s.fn(ctx, call)
}

type preflightStub struct {
	*stubEvaluator
	err error
}

func (p preflightStub) Preflight(context.Context) error { return p.err }

func fixed(kind domain.Kind, score, confidence float64) *stubEvaluator {
	return &stubEvaluator{kind: kind, fn: func(context.Context, int32) domain.PartialAssessment {
		return domain.Success(kind, score, confidence, "ok", nil)
	}}
}

func delayed(kind domain.Kind, score, confidence float64, delay time.Duration) *stubEvaluator {
	return &stubEvaluator{kind: kind, fn: func(ctx context.Context, _ int32) domain.PartialAssessment {
		select {
		case <-time.After(delay):
			return domain.Success(kind, score, confidence, "ok", nil)
		case <-ctx.Done():
			return domain.Failure(kind, ctx.Err())
		}
	}}
}

func blocking(kind domain.Kind) *stubEvaluator {
	return &stubEvaluator{kind: kind, fn: func(ctx context.Context, _ int32) domain.PartialAssessment {
		<-ctx.Done()
		return domain.Failure(kind, ctx.Err())
	}}
}

func failing(kind domain.Kind) *stubEvaluator {
	return &stubEvaluator{kind: kind, fn: func(context.Context, int32) domain.PartialAssessment {
		return domain.Failure(kind, domain.ErrEvaluatorFailure)
	}}
}

func validProfile() domain.StartupProfile {
	return domain.StartupProfile{
		Name:        "Ledgerly",
		Sector:      "fintech",
		Stage:       domain.StageSeed,
		Description: "Automated reconciliation for small business payments.",
		Metrics:     domain.Metrics{FundingRaised: 2_000_000, TeamSize: 12},
	}
}

func newOrchestrator(t *testing.T, opts Options, evaluators ...evaluator.Evaluator) *Orchestrator {
	t.Helper()
	agg, err := scoring.NewAggregator(scoring.DefaultConfig())
	require.NoError(t, err)
	if opts.Quorum.RequiredKinds == nil && opts.Quorum.MinQualitative == 0 {
		opts.Quorum = scoring.DefaultQuorum()
	}
	o, err := New(evaluators, agg, opts)
	require.NoError(t, err)
	return o
}

func scenarioEvaluators() []evaluator.Evaluator {
	return []evaluator.Evaluator{
		fixed(domain.KindMarket, 0.8, 0.9),
		fixed(domain.KindFounder, 0.3, 0.7),
		fixed(domain.KindProduct, 0.5, 0.6),
		fixed(domain.KindQuantitative, 0.65, 1.0),
	}
}

func TestRunMixedScenarioRecommendsWatch(t *testing.T) {
	o := newOrchestrator(t, Options{}, scenarioEvaluators()...)
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)

	require.Len(t, report.Assessments, 4)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.Degraded)
	assert.Equal(t, domain.RecommendationWatch, report.Decision.Recommendation)
	assert.InDelta(t, 0.5875, report.Decision.CompositeScore, 1e-9)
	assert.True(t, report.Decision.HighDisagreement)
	assert.Equal(t, "Ledgerly", report.Profile.Name)
	for _, a := range report.Assessments {
		assert.Equal(t, 1, a.Attempts)
	}
}

func TestRunQualitativeTimeoutsLeaveDecisionUndetermined(t *testing.T) {
	opts := Options{DefaultPolicy: Policy{Timeout: 30 * time.Millisecond, MaxAttempts: 1}}
	o := newOrchestrator(t, opts,
		blocking(domain.KindMarket),
		blocking(domain.KindFounder),
		blocking(domain.KindProduct),
		fixed(domain.KindQuantitative, 0.65, 1.0),
	)
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)

	require.Len(t, report.Assessments, 4)
	counts := report.StatusCounts()
	assert.Equal(t, 3, counts[domain.StatusTimedOut])
	assert.Equal(t, 1, counts[domain.StatusOK])
	assert.Equal(t, domain.RecommendationUndetermined, report.Decision.Recommendation)
	assert.Contains(t, report.Decision.Reason, "quorum")
	assert.InDelta(t, 0.65, report.Decision.CompositeScore, 1e-9)
	assert.True(t, report.Degraded)
}

func TestRunRejectsInvalidProfileBeforeDispatch(t *testing.T) {
	evs := scenarioEvaluators()
	o := newOrchestrator(t, Options{}, evs...)
	profile := validProfile()
	profile.Name = ""
	profile.Stage = "ipo"

	report, err := o.Run(context.Background(), profile)
	assert.Nil(t, report)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)
	for _, ev := range evs {
		assert.Zero(t, atomic.LoadInt32(&ev.(*stubEvaluator).calls))
	}
}

func TestRunPreflightConfigurationErrorAbortsBeforeDispatch(t *testing.T) {
	market := fixed(domain.KindMarket, 0.5, 0.5)
	quant := preflightStub{stubEvaluator: fixed(domain.KindQuantitative, 0.5, 1), err: domain.NewConfigurationError("encoder v1, model expects v2")}
	o := newOrchestrator(t, Options{}, market, quant)

	report, err := o.Run(context.Background(), validProfile())
	assert.Nil(t, report)
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, atomic.LoadInt32(&market.calls))
	assert.Zero(t, atomic.LoadInt32(&quant.calls))
}

func TestRunAllFailedReturnsEvaluationErrorWithReport(t *testing.T) {
	o := newOrchestrator(t, Options{},
		failing(domain.KindMarket),
		failing(domain.KindFounder),
		failing(domain.KindProduct),
		failing(domain.KindQuantitative),
	)
	report, err := o.Run(context.Background(), validProfile())
	var evalErr *domain.EvaluationError
	require.True(t, errors.As(err, &evalErr))
	require.NotNil(t, report)
	assert.Equal(t, report.ID, evalErr.RoundID)
	assert.Len(t, report.Assessments, 4)
	assert.Equal(t, domain.RecommendationUndetermined, report.Decision.Recommendation)
	assert.Len(t, report.Decision.Missing, 4)
}

func TestRunAbandonsNonCooperativeEvaluator(t *testing.T) {
	stubborn := &stubEvaluator{kind: domain.KindMarket, fn: func(context.Context, int32) domain.PartialAssessment {
		time.Sleep(300 * time.Millisecond)
		return domain.Success(domain.KindMarket, 1, 1, "late", nil)
	}}
	opts := Options{Policies: map[domain.Kind]Policy{domain.KindMarket: {Timeout: 20 * time.Millisecond}}}
	o := newOrchestrator(t, opts, stubborn, fixed(domain.KindFounder, 0.5, 0.5), fixed(domain.KindQuantitative, 0.5, 1))

	start := time.Now()
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	market, ok := report.Assessment(domain.KindMarket)
	require.True(t, ok)
	assert.Equal(t, domain.StatusTimedOut, market.Status)
	assert.Equal(t, domain.RecommendationWatch, report.Decision.Recommendation)
}

func TestRunRecoversPanics(t *testing.T) {
	panicky := &stubEvaluator{kind: domain.KindProduct, fn: func(context.Context, int32) domain.PartialAssessment {
		panic("nil map")
	}}
	o := newOrchestrator(t, Options{}, panicky, fixed(domain.KindFounder, 0.5, 0.5), fixed(domain.KindQuantitative, 0.5, 1))
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)
	product, _ := report.Assessment(domain.KindProduct)
	assert.Equal(t, domain.StatusFailed, product.Status)
	assert.Contains(t, product.Rationale, "panic: nil map")
}

func TestRunRetriesFailedAttemptsUpToPolicy(t *testing.T) {
	flaky := &stubEvaluator{kind: domain.KindFounder, fn: func(_ context.Context, call int32) domain.PartialAssessment {
		if call == 1 {
			return domain.Failure(domain.KindFounder, domain.ErrEvaluatorFailure)
		}
		return domain.Success(domain.KindFounder, 0.6, 0.8, "second time lucky", nil)
	}}
	slow := blocking(domain.KindMarket)
	opts := Options{Policies: map[domain.Kind]Policy{
		domain.KindFounder: {MaxAttempts: 2, Backoff: time.Millisecond},
		domain.KindMarket:  {MaxAttempts: 3, Timeout: 10 * time.Millisecond},
	}}
	o := newOrchestrator(t, opts, flaky, slow, fixed(domain.KindQuantitative, 0.5, 1))
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)

	founder, _ := report.Assessment(domain.KindFounder)
	assert.Equal(t, domain.StatusOK, founder.Status)
	assert.Equal(t, 2, founder.Attempts)

	market, _ := report.Assessment(domain.KindMarket)
	assert.Equal(t, domain.StatusTimedOut, market.Status)
	assert.Equal(t, 1, market.Attempts)
	assert.EqualValues(t, 1, atomic.LoadInt32(&slow.calls))
}

func TestRunRoundTimeoutKeepsCompletedAssessments(t *testing.T) {
	opts := Options{RoundTimeout: 50 * time.Millisecond}
	o := newOrchestrator(t, opts,
		fixed(domain.KindMarket, 0.9, 0.9),
		blocking(domain.KindFounder),
		blocking(domain.KindProduct),
		fixed(domain.KindQuantitative, 0.8, 1),
	)
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)

	market, _ := report.Assessment(domain.KindMarket)
	assert.Equal(t, domain.StatusOK, market.Status)
	founder, _ := report.Assessment(domain.KindFounder)
	assert.Equal(t, domain.StatusTimedOut, founder.Status)
	assert.Equal(t, domain.RecommendationInvest, report.Decision.Recommendation)
	assert.True(t, report.Degraded)
}

func TestRunDecisionIndependentOfCompletionOrder(t *testing.T) {
	type signature struct {
		composite  float64
		rec        domain.Recommendation
		confidence float64
		kinds      []domain.Kind
	}
	var first *signature
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		jitter := func() time.Duration { return time.Duration(rng.Intn(15)) * time.Millisecond }
		o := newOrchestrator(t, Options{},
			delayed(domain.KindMarket, 0.8, 0.9, jitter()),
			delayed(domain.KindFounder, 0.3, 0.7, jitter()),
			delayed(domain.KindProduct, 0.5, 0.6, jitter()),
			delayed(domain.KindQuantitative, 0.65, 1.0, jitter()),
		)
		report, err := o.Run(context.Background(), validProfile())
		require.NoError(t, err)
		sig := &signature{
			composite:  report.Decision.CompositeScore,
			rec:        report.Decision.Recommendation,
			confidence: report.Decision.OverallConfidence,
		}
		for _, a := range report.Decision.Contributing {
			sig.kinds = append(sig.kinds, a.Kind)
		}
		if first == nil {
			first = sig
			continue
		}
		assert.Equal(t, *first, *sig)
	}
}

func TestRunOptionalEvaluatorDoesNotDegrade(t *testing.T) {
	opts := Options{Policies: map[domain.Kind]Policy{domain.KindProduct: {Optional: true}}}
	o := newOrchestrator(t, opts,
		fixed(domain.KindMarket, 0.6, 0.8),
		failing(domain.KindProduct),
		fixed(domain.KindQuantitative, 0.6, 1),
	)
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	assert.InDelta(t, 0.8, report.Decision.OverallConfidence, 1e-9)
}

func TestRunEmitsEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)
	opts := Options{Observer: ObserverFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})}
	o := newOrchestrator(t, opts, scenarioEvaluators()...)
	report, err := o.Run(context.Background(), validProfile())
	require.NoError(t, err)

	require.Len(t, events, 6)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventCompleted, events[5].Type)
	assert.Equal(t, report, events[5].Report)
	for i := 1; i <= 4; i++ {
		assert.Equal(t, EventAssessment, events[i].Type)
		assert.Equal(t, i, events[i].Completed)
		assert.Equal(t, 4, events[i].Total)
		assert.Equal(t, report.ID, events[i].RoundID)
	}
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	agg, err := scoring.NewAggregator(scoring.DefaultConfig())
	require.NoError(t, err)
	cases := []struct {
		name       string
		evaluators []evaluator.Evaluator
		opts       Options
	}{
		{"none", nil, Options{Quorum: scoring.DefaultQuorum()}},
		{"duplicate kind", []evaluator.Evaluator{fixed(domain.KindMarket, 0, 0), fixed(domain.KindMarket, 0, 0), fixed(domain.KindQuantitative, 0, 0)}, Options{Quorum: scoring.DefaultQuorum()}},
		{"quorum kind missing", []evaluator.Evaluator{fixed(domain.KindMarket, 0, 0)}, Options{Quorum: scoring.DefaultQuorum()}},
		{"too many attempts", scenarioEvaluators(), Options{Quorum: scoring.DefaultQuorum(), DefaultPolicy: Policy{MaxAttempts: 5}}},
		{"required marked optional", scenarioEvaluators(), Options{Quorum: scoring.DefaultQuorum(), Policies: map[domain.Kind]Policy{domain.KindQuantitative: {Optional: true}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.evaluators, agg, tc.opts)
			var cfgErr *domain.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestRunMisconfiguredEvaluatorAbortsRound(t *testing.T) {
	market := blocking(domain.KindMarket)
	quant := &stubEvaluator{kind: domain.KindQuantitative, fn: func(context.Context, int32) domain.PartialAssessment {
		return domain.Failure(domain.KindQuantitative, fmt.Errorf("%w: encoder v2 rejected", domain.ErrMisconfigured))
	}}
	opts := Options{Policies: map[domain.Kind]Policy{domain.KindQuantitative: {MaxAttempts: 3}}}
	o := newOrchestrator(t, opts, market, quant)

	var events []Event
	var mu sync.Mutex
	o.opts.Observer = ObserverFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	start := time.Now()
	report, err := o.Run(context.Background(), validProfile())
	assert.Nil(t, report)
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.ErrorIs(t, err, domain.ErrMisconfigured)
	assert.EqualValues(t, 1, atomic.LoadInt32(&quant.calls))
	assert.Less(t, time.Since(start), 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, EventFailed, events[len(events)-1].Type)
}

func TestRunModelServerRejectingPredictAbortsRound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			_ = json.NewEncoder(w).Encode(classifier.ModelInfo{ModelVersion: "remote-1", EncoderVersion: classifier.EncoderVersion})
		case "/predict":
			w.WriteHeader(http.StatusConflict)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	quant := evaluator.NewQuantitative(classifier.NewFeatureEncoder(), classifier.NewRemote(srv.URL, ""), 1)
	o := newOrchestrator(t, Options{}, fixed(domain.KindMarket, 0.7, 0.8), quant)

	report, err := o.Run(context.Background(), validProfile())
	assert.Nil(t, report)
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.ErrorIs(t, err, classifier.ErrVersionMismatch)
}

func TestRunModelServerWithoutInfoFailsPreflight(t *testing.T) {
	var predicts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/predict" {
			atomic.AddInt32(&predicts, 1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	market := fixed(domain.KindMarket, 0.7, 0.8)
	quant := evaluator.NewQuantitative(classifier.NewFeatureEncoder(), classifier.NewRemote(srv.URL, ""), 1)
	o := newOrchestrator(t, Options{}, market, quant)

	report, err := o.Run(context.Background(), validProfile())
	assert.Nil(t, report)
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Zero(t, atomic.LoadInt32(&market.calls))
	assert.Zero(t, atomic.LoadInt32(&predicts))
}
