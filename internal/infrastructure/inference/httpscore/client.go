// Package httpscore talks to an HTTP scoring service that ranks the closed
// document type set from a feature vector. Primary and secondary ensemble
// models are both instances of this client pointed at different services.
package httpscore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/infrastructure/resilience"
)

type Config struct {
	// Name identifies the model in logs and classification metadata.
	Name    string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
	operation  string
}

func New(cfg Config, exec *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "model"
	}
	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
		operation:  "score_" + name,
	}
}

func (c *Client) Name() string { return c.name }

type scoreRequest struct {
	Features []float64 `json:"features"`
}

type scoreResponse struct {
	Scores       map[string]float64 `json:"scores"`
	ModelVersion string             `json:"model_version,omitempty"`
}

// Scores posts the feature vector and returns per-type scores. Keys come back
// as the service sent them; an out-of-set type is the ensemble's problem to
// reject, not this client's to hide.
func (c *Client) Scores(ctx context.Context, features []float64) (map[domain.DocumentType]float64, error) {
	req := scoreRequest{Features: features}
	var resp scoreResponse
	err := c.exec.Execute(ctx, c.operation, func(ctx context.Context) error {
		resp = scoreResponse{}
		return c.postJSON(ctx, "/v1/scores", req, &resp)
	}, classifyScoreError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(c.operation, err)
	}
	if len(resp.Scores) == 0 {
		return nil, fmt.Errorf("%s: service returned no scores", c.operation)
	}

	out := make(map[domain.DocumentType]float64, len(resp.Scores))
	for k, v := range resp.Scores {
		out[domain.DocumentType(k)] = v
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(c.operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.operation, err)
	}
	return nil
}
