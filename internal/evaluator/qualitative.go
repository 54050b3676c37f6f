package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/ai"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// maxMalformedRetries bounds re-asks after a schema violation.
const maxMalformedRetries = 1

// reasoning is the shared LLM step of the qualitative evaluators.
type reasoning struct {
	kind     domain.Kind
	reasoner ai.Reasoner
	schema   ai.Schema
}

// complete asks the reasoner and re-asks once when the reply violates the schema.
// Transport errors are not retried here; that is the orchestrator policy's job.
func (r reasoning) complete(ctx context.Context, prompt ai.Prompt) (ai.Response, int, error) {
	if r.reasoner == nil {
		return ai.Response{}, 0, ai.ErrDisabled
	}
	calls := 0
	var lastErr error
	for attempt := 0; attempt <= maxMalformedRetries; attempt++ {
		calls++
		resp, err := r.reasoner.Complete(ctx, prompt, r.schema)
		if err == nil {
			return resp, calls, nil
		}
		lastErr = err
		if !errors.Is(err, ai.ErrMalformed) || ctx.Err() != nil {
			break
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"evaluator": r.kind,
			"attempt":   calls,
		}).Warn("malformed reasoning response")
	}
	return ai.Response{}, calls, lastErr
}

// comparablesBlock renders prior cases for prompts.
func comparablesBlock(items []Comparable, limit int) string {
	if len(items) == 0 {
		return "No prior comparable evaluations on record."
	}
	b := &strings.Builder{}
	b.WriteString("Prior evaluations of comparable startups:\n")
	for i, item := range items {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(b, "- %s (%s, %s): %s, composite %.2f\n", item.Name, item.Sector, item.Stage, item.Recommendation, item.CompositeScore)
	}
	return b.String()
}

func profileBlock(p domain.StartupProfile) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Startup: %s\n", p.Name)
	fmt.Fprintf(b, "Sector: %s\n", p.Sector)
	fmt.Fprintf(b, "Stage: %s\n", p.Stage)
	fmt.Fprintf(b, "Description: %s\n", p.Description)
	fmt.Fprintf(b, "Funding raised (USD): %.0f\n", p.Metrics.FundingRaised)
	fmt.Fprintf(b, "Team size: %d\n", p.Metrics.TeamSize)
	fmt.Fprintf(b, "Patents: %d\n", p.Metrics.PatentCount)
	return b.String()
}

// responseDetails copies the raw response values into assessment details.
func responseDetails(resp ai.Response, calls int) map[string]any {
	details := make(map[string]any, len(resp.Values)+2)
	for k, v := range resp.Values {
		if k == "rationale" {
			continue
		}
		details[k] = v
	}
	details["reasoner"] = resp.Source
	details["llm_calls"] = calls
	return details
}
