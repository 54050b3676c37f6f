package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate result fields in a search results page.
type Selectors struct {
	Result  string
	Title   string
	Snippet string
	Link    string
}

// DuckDuckGoSelectors match the html.duckduckgo.com results markup.
var DuckDuckGoSelectors = Selectors{
	Result:  ".result",
	Title:   ".result__a",
	Snippet: ".result__snippet",
	Link:    ".result__a",
}

// HTMLScraper scrapes a plain HTML search results page. It needs no API key and serves
// as the fallback source.
type HTMLScraper struct {
	client    *http.Client
	baseURL   string
	selectors Selectors
	results   int
}

// NewHTMLScraper builds a scraper. baseURL receives the query as the q parameter.
func NewHTMLScraper(client *http.Client, baseURL string, selectors Selectors, results int) *HTMLScraper {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	if selectors.Result == "" {
		selectors = DuckDuckGoSelectors
	}
	if results <= 0 {
		results = 5
	}
	return &HTMLScraper{client: client, baseURL: baseURL, selectors: selectors, results: results}
}

func (s *HTMLScraper) Fetch(ctx context.Context, query string) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	endpoint, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse scraper url: %w", err)
	}
	params := endpoint.Query()
	params.Set("q", query)
	endpoint.RawQuery = params.Encode()

	doc, err := s.fetchDocument(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}
	return s.extract(doc), nil
}

func (s *HTMLScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ssff/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request results page: %w", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: results page returned %s", ErrDataUnavailable, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse results page: %w", ErrDataUnavailable, err)
	}
	return doc, nil
}

func (s *HTMLScraper) extract(doc *goquery.Document) []Document {
	var docs []Document
	doc.Find(s.selectors.Result).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(s.selectors.Title).First().Text())
		if title == "" {
			return true
		}
		href, _ := sel.Find(s.selectors.Link).First().Attr("href")
		href = resolveRedirect(href)
		docs = append(docs, Document{
			Title:   title,
			Source:  hostOf(href),
			Snippet: truncate(sel.Find(s.selectors.Snippet).First().Text(), 500),
			URL:     href,
		})
		return len(docs) < s.results
	})
	return docs
}

// resolveRedirect unwraps "/l/?uddg=<target>" style redirect links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
