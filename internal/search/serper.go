package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingCredentials is returned when the search API key is empty.
var ErrMissingCredentials = errors.New("search client missing api key")

// Config drives the JSON search API client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Results int
}

// Client queries a Google-results JSON API (serper.dev wire format).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	results    int
}

// NewClient constructs a search client if configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://google.serper.dev/search"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	results := cfg.Results
	if results <= 0 {
		results = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		results:    results,
	}, nil
}

// Fetch returns organic results for query. Every failure wraps ErrDataUnavailable.
func (c *Client) Fetch(ctx context.Context, query string) ([]Document, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: search client is nil", ErrDataUnavailable)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{"q": query, "num": c.results})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %w", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search api status %d", ErrDataUnavailable, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", ErrDataUnavailable, err)
	}

	docs := make([]Document, 0, len(payload.Organic))
	for _, item := range payload.Organic {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		source := strings.TrimSpace(item.Source)
		if source == "" {
			source = hostOf(item.Link)
		}
		docs = append(docs, Document{
			Title:   title,
			Source:  source,
			Snippet: truncate(item.Snippet, 500),
			URL:     strings.TrimSpace(item.Link),
			Date:    strings.TrimSpace(item.Date),
		})
		if len(docs) == c.results {
			break
		}
	}
	return docs, nil
}

type searchResponse struct {
	Organic []searchResult `json:"organic"`
}

type searchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Source  string `json:"source"`
}

func hostOf(link string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
