package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Remote calls a model server exposing GET /info and POST /predict.
type Remote struct {
	endpoint  string
	apiKey    string
	http      *http.Client
	threshold float64
}

// NewRemote creates a reusable HTTP predictor.
func NewRemote(endpoint, apiKey string) *Remote {
	return &Remote{
		endpoint:  strings.TrimRight(endpoint, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		threshold: 0.5,
	}
}

func (r *Remote) Info(ctx context.Context) (ModelInfo, error) {
	var info ModelInfo
	if err := r.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return ModelInfo{}, err
	}
	return info, nil
}

func (r *Remote) Predict(ctx context.Context, features Features) (Prediction, error) {
	payload := map[string]any{
		"encoder_version": features.Version,
		"features":        features.Map(),
	}
	var out Prediction
	if err := r.do(ctx, http.MethodPost, "/predict", payload, &out); err != nil {
		return Prediction{}, err
	}
	if out.Probability < 0 || out.Probability > 1 {
		return Prediction{}, fmt.Errorf("model server returned probability %g outside [0,1]", out.Probability)
	}
	if out.Label == "" {
		out.Label = labelFor(out.Probability, r.threshold)
	}
	return out, nil
}

func (r *Remote) do(ctx context.Context, method, path string, payload any, v any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: model server rejected %s", ErrVersionMismatch, path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
