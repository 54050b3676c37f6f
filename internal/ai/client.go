package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Config holds OpenAI-compatible chat completion settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements Reasoner against an OpenAI-compatible chat completions API.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete sends the prompt and validates the reply against schema. Transport problems
// wrap ErrTransport, schema violations wrap ErrMalformed.
func (c *Client) Complete(ctx context.Context, prompt Prompt, schema Schema) (Response, error) {
	if c == nil || !c.Enabled() {
		return Response{}, ErrDisabled
	}

	body, err := json.Marshal(c.buildPayload(prompt, schema))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: openai request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("%w: openai status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: openai returned no choices", ErrMalformed)
	}

	out, err := schema.Decode(decoded.Choices[0].Message.Content)
	if err != nil {
		return Response{}, err
	}
	out.Source = "openai:" + c.model
	return out, nil
}

func (c *Client) buildPayload(prompt Prompt, schema Schema) map[string]any {
	system := strings.TrimSpace(prompt.System)
	if system != "" {
		system += "\n\n"
	}
	system += schema.Instructions()

	messages := []map[string]string{
		{"role": "system", "content": system},
		{"role": "user", "content": buildUserPrompt(prompt)},
	}
	payload := map[string]any{
		"model":           c.model,
		"messages":        messages,
		"temperature":     c.temperature,
		"response_format": map[string]string{"type": "json_object"},
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}

func buildUserPrompt(prompt Prompt) string {
	if len(prompt.Signals) == 0 {
		return prompt.User
	}
	builder := &strings.Builder{}
	builder.WriteString(strings.TrimSpace(prompt.User))
	builder.WriteString("\n\nHeuristic estimates derived from the profile metrics (adjust if the evidence disagrees):\n")
	names := make([]string, 0, len(prompt.Signals))
	for name := range prompt.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(builder, "- %s: %.2f\n", name, prompt.Signals[name])
	}
	return builder.String()
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
