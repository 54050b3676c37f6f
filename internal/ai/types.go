package ai

import (
	"context"
	"errors"
)

var (
	// ErrDisabled is returned when no reasoning backend is configured.
	ErrDisabled = errors.New("ai reasoner disabled")
	// ErrMalformed marks a response that does not conform to the declared schema.
	ErrMalformed = errors.New("ai response malformed")
	// ErrTransport marks network, HTTP status or envelope failures talking to the model.
	ErrTransport = errors.New("ai transport failure")
)

// Reasoner produces a structured response for a prompt.
type Reasoner interface {
	Enabled() bool
	Complete(ctx context.Context, prompt Prompt, schema Schema) (Response, error)
}

// Prompt is one reasoning request. Signals carries profile-derived estimates keyed by
// schema field name; remote models see them in the user text, the heuristic reasoner
// answers from them directly.
type Prompt struct {
	System  string
	User    string
	Signals map[string]float64
}

// Response holds the validated values keyed by schema field name.
type Response struct {
	Values map[string]any
	Source string
}

// Float returns the numeric value of field name, or 0.
func (r Response) Float(name string) float64 {
	if v, ok := r.Values[name].(float64); ok {
		return v
	}
	return 0
}

// Text returns the string value of field name, or "".
func (r Response) Text(name string) string {
	if v, ok := r.Values[name].(string); ok {
		return v
	}
	return ""
}

// Has reports whether field name is present.
func (r Response) Has(name string) bool {
	_, ok := r.Values[name]
	return ok
}
