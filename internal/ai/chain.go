package ai

import (
	"context"
	"errors"
)

type reasonerChain struct {
	primary  Reasoner
	fallback Reasoner
}

// WithFallback returns a reasoner that uses primary when it is enabled and the fallback
// otherwise. Transport and schema errors from an enabled primary are returned as-is.
func WithFallback(primary, fallback Reasoner) Reasoner {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &reasonerChain{primary: primary, fallback: fallback}
}

func (c *reasonerChain) Enabled() bool {
	if c == nil {
		return false
	}
	return (c.primary != nil && c.primary.Enabled()) || (c.fallback != nil && c.fallback.Enabled())
}

func (c *reasonerChain) Complete(ctx context.Context, prompt Prompt, schema Schema) (Response, error) {
	if c == nil {
		return Response{}, ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		resp, err := c.primary.Complete(ctx, prompt, schema)
		if !errors.Is(err, ErrDisabled) {
			return resp, err
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Complete(ctx, prompt, schema)
	}
	return Response{}, ErrDisabled
}
