package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ErrDataUnavailable is returned when a source cannot serve a query. Callers treat it as
// degraded input.
var ErrDataUnavailable = errors.New("external data unavailable")

// Document is one search hit.
type Document struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Source fetches an ordered list of documents for a query.
type Source interface {
	Fetch(ctx context.Context, query string) ([]Document, error)
}

// Cached wraps a Source with a TTL cache keyed by normalized query. Failed fetches are
// not cached.
type Cached struct {
	next  Source
	ttl   time.Duration
	cache sync.Map // map[string]cacheEntry
}

type cacheEntry struct {
	at   time.Time
	docs []Document
}

// NewCached returns a caching Source. ttl defaults to 12h.
func NewCached(next Source, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Cached{next: next, ttl: ttl}
}

func (c *Cached) Fetch(ctx context.Context, query string) ([]Document, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return nil, nil
	}
	if entry, ok := c.cache.Load(key); ok {
		cached := entry.(cacheEntry)
		if time.Since(cached.at) < c.ttl {
			return cloneDocs(cached.docs), nil
		}
		c.cache.Delete(key)
	}
	docs, err := c.next.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Store(key, cacheEntry{at: time.Now(), docs: cloneDocs(docs)})
	return docs, nil
}

// Chain tries each source in order and returns the first non-empty result.
type Chain []Source

func (c Chain) Fetch(ctx context.Context, query string) ([]Document, error) {
	var errs []error
	for _, src := range c {
		if src == nil {
			continue
		}
		docs, err := src.Fetch(ctx, query)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(docs) > 0 {
			return docs, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrDataUnavailable}, errs...)...)
	}
	return nil, nil
}

func cloneDocs(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	copy(out, docs)
	return out
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if limit <= 0 || len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	cut := value[:limit]
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
