// Package providers implements the language-model collaborator: an
// Ollama-compatible HTTP client with bounded retry and rate limiting.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrModelUnavailable means the endpoint stayed unreachable through
// the whole retry budget. The turn is aborted, not hung.
var ErrModelUnavailable = errors.New("model endpoint unavailable")

// fallbackModels is offered when the endpoint cannot enumerate models.
var fallbackModels = []string{"llama3", "codellama"}

// Client talks to an Ollama-compatible endpoint.
type Client struct {
	base        string
	httpc       *http.Client
	model       string
	temperature float64
	retry       RetryConfig
	limiter     *rate.Limiter
}

// NewClient creates a client for the endpoint base URL. The model must
// be selected (SetModel) before the first Generate call.
func NewClient(base string, timeout time.Duration, retry RetryConfig, temperature float64) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		base:        base,
		httpc:       &http.Client{Timeout: timeout},
		temperature: temperature,
		retry:       retry,
		// One generate call per second sustained, small burst.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// SetModel selects the model identifier used by Generate.
func (c *Client) SetModel(name string) { c.model = name }

// Model returns the selected model identifier.
func (c *Client) Model() string { return c.model }

// ListModels enumerates models the endpoint serves (GET /api/tags).
// Connection failures are retried; if the endpoint stays unreachable a
// fallback list is returned so startup selection still works offline.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	out, err := executeWithRetry(ctx, c.retry, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/tags", nil)
		if err != nil {
			return "", err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("tags: status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		return string(body), err
	})
	if err != nil {
		slog.Warn("could not reach model endpoint, using fallback model list",
			"endpoint", c.base, "error", err)
		return fallbackModels, nil
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("parse model list: %w", err)
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		return fallbackModels, nil
	}
	return names, nil
}

// Generate sends a prompt and returns the model's text (POST
// /api/generate, non-streaming). This is the one blocking external
// I/O point of the interaction loop: rate-limited, retried with
// backoff, ErrModelUnavailable once the budget is exhausted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.model == "" {
		return "", errors.New("no model selected")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.temperature,
		},
	})
	if err != nil {
		return "", err
	}

	out, err := executeWithRetry(ctx, c.retry, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.base+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return "", fmt.Errorf("generate: status %d: %s", resp.StatusCode, body)
		}

		var parsed struct {
			Response string `json:"response"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", fmt.Errorf("parse response: %w", err)
		}
		return parsed.Response, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return out, nil
}
