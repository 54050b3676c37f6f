package ai

import (
	"context"
	"math"
)

// HeuristicConfidence is the confidence the heuristic reasoner reports.
const HeuristicConfidence = 0.3

// Heuristic answers any schema deterministically from the prompt signals. Numeric fields
// without a signal get the midpoint of their range; a field named "confidence" is pinned
// to HeuristicConfidence.
type Heuristic struct{}

// NewHeuristic returns the offline reasoner.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Enabled() bool { return h != nil }

func (h *Heuristic) Complete(ctx context.Context, prompt Prompt, schema Schema) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	raw := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		switch f.Type {
		case FieldNumber, FieldInteger:
			value, ok := prompt.Signals[f.Name]
			if !ok {
				value = f.Min + (f.Max-f.Min)/2
			}
			if f.Name == "confidence" {
				value = HeuristicConfidence
			}
			value = math.Max(f.Min, math.Min(f.Max, value))
			if f.Type == FieldInteger {
				value = math.Round(value)
			}
			raw[f.Name] = value
		case FieldEnum:
			if len(f.Enum) > 0 {
				idx := 0
				if signal, ok := prompt.Signals[f.Name]; ok {
					idx = int(math.Round(math.Max(0, math.Min(1, signal)) * float64(len(f.Enum)-1)))
				}
				raw[f.Name] = f.Enum[idx]
			}
		default:
			raw[f.Name] = "Heuristic estimate from profile metrics; no language model was consulted."
		}
	}
	out, err := schema.Validate(raw)
	if err != nil {
		return Response{}, err
	}
	out.Source = "heuristic"
	return out, nil
}
