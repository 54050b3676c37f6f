package evaluator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/search"
)

// Comparable is a prior evaluation of a similar startup.
type Comparable struct {
	Name           string                `json:"name"`
	Sector         string                `json:"sector"`
	Stage          domain.Stage          `json:"stage"`
	Recommendation domain.Recommendation `json:"recommendation"`
	CompositeScore float64               `json:"composite_score"`
	EvaluatedAt    time.Time             `json:"evaluated_at"`
}

// ExternalContext gives evaluators read-only access to external data. It is shared by
// all evaluators of one round and safe for concurrent use.
type ExternalContext interface {
	Documents(ctx context.Context, query string) ([]search.Document, error)
	Comparables() []Comparable
}

// RoundContext memoizes document lookups for the lifetime of one round. Concurrent
// requests for the same query share a single fetch.
type RoundContext struct {
	source      search.Source
	comparables []Comparable

	group singleflight.Group
	mu    sync.RWMutex
	docs  map[string][]search.Document
}

// NewRoundContext builds a context over source. A nil source reports every query as
// unavailable.
func NewRoundContext(source search.Source, comparables []Comparable) *RoundContext {
	cloned := make([]Comparable, len(comparables))
	copy(cloned, comparables)
	return &RoundContext{
		source:      source,
		comparables: cloned,
		docs:        make(map[string][]search.Document),
	}
}

func (r *RoundContext) Documents(ctx context.Context, query string) ([]search.Document, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return nil, nil
	}
	if r.source == nil {
		return nil, fmt.Errorf("%w: no search source configured", search.ErrDataUnavailable)
	}

	r.mu.RLock()
	cached, ok := r.docs[key]
	r.mu.RUnlock()
	if ok {
		return cloneDocuments(cached), nil
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.docs[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}
		docs, err := r.source.Fetch(ctx, query)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.docs[key] = cloneDocuments(docs)
		r.mu.Unlock()
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneDocuments(result.([]search.Document)), nil
}

func (r *RoundContext) Comparables() []Comparable {
	out := make([]Comparable, len(r.comparables))
	copy(out, r.comparables)
	return out
}

func cloneDocuments(docs []search.Document) []search.Document {
	if docs == nil {
		return nil
	}
	out := make([]search.Document, len(docs))
	copy(out, docs)
	return out
}
