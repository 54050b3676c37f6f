package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetchParsesOrganicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fintech market size", body["q"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []any{
				map[string]any{"title": "Fintech market to reach $500B", "link": "https://www.example.com/a", "snippet": "  Strong   growth ", "date": "Mar 1, 2025"},
				map[string]any{"title": "", "link": "https://skip.me"},
				map[string]any{"title": "Payments report", "link": "https://news.example.org/b", "snippet": "CAGR 12%", "source": "Example News"},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	docs, err := client.Fetch(context.Background(), "fintech market size")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{Title: "Fintech market to reach $500B", Source: "example.com", Snippet: "Strong growth", URL: "https://www.example.com/a", Date: "Mar 1, 2025"}, docs[0])
	assert.Equal(t, "Example News", docs[1].Source)
}

func TestClientFetchFailureIsDataUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.techcrunch.com%2Fstory">Climate startups raise record funding</a>
  <a class="result__snippet">Investors poured money into climate tech.</a>
</div>
<div class="result"><a class="result__a" href="https://example.org/x"></a></div>
<div class="result">
  <a class="result__a" href="https://example.org/trends">Carbon capture trends 2025</a>
  <div class="result__snippet">Emerging markets lead adoption.</div>
</div>
</body></html>`

func TestHTMLScraperExtractsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "climate funding", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	scraper := NewHTMLScraper(srv.Client(), srv.URL, Selectors{}, 5)
	docs, err := scraper.Fetch(context.Background(), "climate funding")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Climate startups raise record funding", docs[0].Title)
	assert.Equal(t, "https://www.techcrunch.com/story", docs[0].URL)
	assert.Equal(t, "techcrunch.com", docs[0].Source)
	assert.Equal(t, "Emerging markets lead adoption.", docs[1].Snippet)
}

type countingSource struct {
	calls int32
	docs  []Document
	err   error
}

func (c *countingSource) Fetch(ctx context.Context, query string) ([]Document, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.docs, c.err
}

func TestCachedServesRepeatQueriesFromMemory(t *testing.T) {
	inner := &countingSource{docs: []Document{{Title: "a"}}}
	cached := NewCached(inner, time.Minute)

	first, err := cached.Fetch(context.Background(), "Fintech  Market")
	require.NoError(t, err)
	first[0].Title = "mutated"
	second, err := cached.Fetch(context.Background(), "fintech market")
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&inner.calls))
	assert.Equal(t, "a", second[0].Title)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	inner := &countingSource{err: ErrDataUnavailable}
	cached := NewCached(inner, time.Minute)
	_, err := cached.Fetch(context.Background(), "q")
	assert.Error(t, err)
	_, err = cached.Fetch(context.Background(), "q")
	assert.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&inner.calls))
}

func TestChainFallsThrough(t *testing.T) {
	failing := &countingSource{err: errors.New("boom")}
	empty := &countingSource{}
	good := &countingSource{docs: []Document{{Title: "hit"}}}

	docs, err := Chain{failing, empty, good}.Fetch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "hit", docs[0].Title)

	_, err = Chain{failing}.Fetch(context.Background(), "q")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "  a   b ", 10, "a b"},
		{"word boundary", "alpha beta gamma", 12, "alpha beta..."},
		{"multibyte without spaces", "ééééé", 5, "éé..."},
		{"cjk", "市场规模持续增长", 7, "市场..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
