package config

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/classifier"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/evaluator"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/orchestrator"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/scoring"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/search"
)

// ComparableLookup finds prior reports of the same sector.
type ComparableLookup interface {
	Comparables(sector, excludeName string, limit int) ([]evaluator.Comparable, error)
}

// Reasoner returns the LLM reasoner with the heuristic fallback behind it.
func (c Config) Reasoner() (ai.Reasoner, error) {
	fallback := ai.NewHeuristic()
	if c.AI.Disabled {
		logrus.Info("AI reasoning disabled via configuration; using heuristic reasoner")
		return fallback, nil
	}
	client, err := ai.NewClient(ai.Config{
		APIKey:      c.AI.APIKey,
		Model:       c.AI.Model,
		BaseURL:     c.AI.BaseURL,
		Temperature: c.AI.Temperature,
		MaxTokens:   c.AI.MaxTokens,
		Timeout:     c.AI.Timeout,
	})
	if errors.Is(err, ai.ErrDisabled) {
		logrus.Warn("no OpenAI credentials configured; using heuristic reasoner")
		return fallback, nil
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "ai client", Err: err}
	}
	logrus.WithField("model", client.Model()).Info("AI reasoning enabled")
	return ai.WithFallback(client, fallback), nil
}

// SearchSource returns the cached document source, or nil when search is off.
func (c Config) SearchSource() (search.Source, error) {
	html := func() search.Source {
		return search.NewHTMLScraper(&http.Client{Timeout: c.Search.Timeout}, c.Search.HTMLURL, search.Selectors{}, c.Search.Results)
	}
	serper := func() (search.Source, error) {
		return search.NewClient(search.Config{
			APIKey:  c.Search.APIKey,
			BaseURL: c.Search.BaseURL,
			Timeout: c.Search.Timeout,
			Results: c.Search.Results,
		})
	}

	var source search.Source
	switch c.Search.Provider {
	case searchProviderNone:
		logrus.Info("external search disabled")
		return nil, nil
	case searchProviderHTML:
		source = html()
	case searchProviderSerper:
		client, err := serper()
		if err != nil {
			return nil, &domain.ConfigurationError{Reason: "search client", Err: err}
		}
		source = client
	default:
		if strings.TrimSpace(c.Search.APIKey) == "" {
			source = html()
			break
		}
		client, err := serper()
		if err != nil {
			return nil, &domain.ConfigurationError{Reason: "search client", Err: err}
		}
		source = search.Chain{client, html()}
	}
	logrus.WithFields(logrus.Fields{
		"provider":  c.Search.Provider,
		"results":   c.Search.Results,
		"cache_ttl": c.Search.CacheTTL,
	}).Info("external search enabled")
	return search.NewCached(source, c.Search.CacheTTL), nil
}

// Predictor returns the configured classifier.
func (c Config) Predictor() (classifier.Predictor, error) {
	if endpoint := strings.TrimSpace(c.Classifier.Endpoint); endpoint != "" {
		return classifier.NewRemote(endpoint, c.Classifier.APIKey), nil
	}
	model, err := classifier.LoadLinearModel(strings.TrimSpace(c.Classifier.Artifact))
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: "classifier artifact", Err: err}
	}
	return model, nil
}

// Evaluators builds the enabled evaluators in canonical order.
func (c Config) Evaluators() ([]evaluator.Evaluator, error) {
	kinds := c.EnabledKinds()
	var reasoner ai.Reasoner
	for _, kind := range kinds {
		if kind.Qualitative() {
			r, err := c.Reasoner()
			if err != nil {
				return nil, err
			}
			reasoner = r
			break
		}
	}

	out := make([]evaluator.Evaluator, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case domain.KindMarket:
			out = append(out, evaluator.NewMarket(reasoner, c.Orchestrator.DocumentsPerKey))
		case domain.KindFounder:
			out = append(out, evaluator.NewFounder(reasoner))
		case domain.KindProduct:
			out = append(out, evaluator.NewProduct(reasoner))
		case domain.KindQuantitative:
			predictor, err := c.Predictor()
			if err != nil {
				return nil, err
			}
			out = append(out, evaluator.NewQuantitative(classifier.NewFeatureEncoder(), predictor, c.Classifier.Confidence))
		}
	}
	return out, nil
}

// OrchestratorOptions converts the orchestrator section. lookup and observer may be nil.
func (c Config) OrchestratorOptions(source search.Source, lookup ComparableLookup, observer orchestrator.Observer) (orchestrator.Options, error) {
	quorum, err := c.Quorum()
	if err != nil {
		return orchestrator.Options{}, err
	}
	opts := orchestrator.DefaultOptions()
	opts.RoundTimeout = c.Orchestrator.RoundTimeout
	opts.MaxConcurrency = c.Orchestrator.MaxConcurrency
	opts.Quorum = quorum
	opts.Observer = observer
	opts.Policies = make(map[domain.Kind]orchestrator.Policy, len(c.Orchestrator.Evaluators))
	for name, entry := range c.Orchestrator.Evaluators {
		kind, err := domain.ParseKind(name)
		if err != nil {
			return orchestrator.Options{}, &domain.ConfigurationError{Reason: "orchestrator.evaluators", Err: err}
		}
		opts.Policies[kind] = entry.Policy()
	}

	limit := c.Orchestrator.Comparables
	opts.Context = func(ctx context.Context, profile domain.StartupProfile) evaluator.ExternalContext {
		var comparables []evaluator.Comparable
		if lookup != nil && limit > 0 {
			found, err := lookup.Comparables(profile.Sector, profile.Name, limit)
			if err != nil {
				logrus.WithError(err).WithField("sector", profile.Sector).Warn("load comparable reports")
			}
			comparables = found
		}
		return evaluator.NewRoundContext(source, comparables)
	}
	return opts, nil
}

// BuildOrchestrator wires the full evaluation pipeline from the configuration.
func (c Config) BuildOrchestrator(lookup ComparableLookup, observer orchestrator.Observer) (*orchestrator.Orchestrator, error) {
	evaluators, err := c.Evaluators()
	if err != nil {
		return nil, err
	}
	source, err := c.SearchSource()
	if err != nil {
		return nil, err
	}
	aggregator, err := scoring.NewAggregator(c.Aggregation)
	if err != nil {
		return nil, err
	}
	opts, err := c.OrchestratorOptions(source, lookup, observer)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(evaluators, aggregator, opts)
}
