// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm provides the gateway to the remote text-generation service:
// a deduplicated, cached, retrying client. Responses are cached in a local
// tier and an optional distributed tier keyed by a content hash of the
// prompt and model id. Only HTTP 429 is retried; authentication and
// request errors fail immediately.
package llm

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/logger"
)

// DefaultModel is the cheapest/fastest model, used when no model id is
// given.
const DefaultModel = "claude-3-haiku"

const (
	maxRetries     = 3
	requestTimeout = 10 * time.Second
	cacheTTL       = 2 * time.Hour
)

// ErrUnauthorized signals an invalid API key. This is a fatal
// configuration error, never retried.
var ErrUnauthorized = faults.Upstream("llm", fmt.Errorf("unauthorized: invalid API key"))

// Generator is the text-generation contract consumed by the agents.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string) (string, error)
}

// Client calls the remote text-generation endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cache      cache.Store
	log        *logger.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

// NewClient creates a gateway client. store may be nil to disable
// caching.
func NewClient(endpoint, apiKey string, store cache.Store) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache: store,
		log:   logger.New("llm-gateway"),
		sleep: time.Sleep,
	}
}

type generateRequest struct {
	APIKey      string      `json:"api_key"`
	Prompt      string      `json:"prompt"`
	ModelID     string      `json:"model_id"`
	ModelParams modelParams `json:"model_params"`
}

type modelParams struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"response"`
	Error string `json:"error,omitempty"`
}

// Generate returns the model's text for prompt, consulting the cache
// tiers first. On HTTP 429 it retries up to three attempts with
// exponential backoff starting at one second; any other failure is
// returned after the current attempt.
func (c *Client) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	if modelID == "" {
		modelID = DefaultModel
	}
	key := cacheKey(prompt, modelID)

	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			c.log.Info("", "", "LLM cache hit", map[string]interface{}{"model": modelID})
			return cached, nil
		}
		c.log.Debug("", "", "LLM cache miss", map[string]interface{}{"model": modelID})
	}

	text, err := c.callWithRetry(ctx, prompt, modelID)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, text, cacheTTL); err != nil {
			c.log.Warn("", "", "failed to cache LLM response", map[string]interface{}{"error": err.Error()})
		}
	}
	return text, nil
}

func (c *Client) callWithRetry(ctx context.Context, prompt, modelID string) (string, error) {
	backoff := time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		text, retryable, err := c.call(ctx, prompt, modelID)
		if err == nil {
			return text, nil
		}
		if !retryable {
			return "", err
		}
		c.log.Warn("", "", "rate limited by LLM service, backing off", map[string]interface{}{
			"model":   modelID,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		})
		c.sleep(backoff)
		backoff *= 2
	}
	return "", faults.Upstream("llm", fmt.Errorf("max retries reached for model %s", modelID))
}

// call performs a single request. The bool result reports whether the
// failure is retryable (rate limiting only).
func (c *Client) call(ctx context.Context, prompt, modelID string) (string, bool, error) {
	payload := generateRequest{
		APIKey:  c.apiKey,
		Prompt:  prompt,
		ModelID: modelID,
		ModelParams: modelParams{
			MaxTokens:   1000,
			Temperature: 0.7,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", false, faults.Upstream("llm", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, faults.Upstream("llm", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, faults.Upstream("llm", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	latency := float64(time.Since(start).Milliseconds())
	c.log.InfoWithDuration("", "", "LLM request completed", latency, map[string]interface{}{
		"model":  modelID,
		"status": resp.StatusCode,
	})
	if err != nil {
		return "", false, faults.Upstream("llm", fmt.Errorf("failed to read response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to parsing below
	case http.StatusTooManyRequests:
		return "", true, faults.Upstream("llm", fmt.Errorf("rate limited (429)"))
	case http.StatusUnauthorized:
		return "", false, ErrUnauthorized
	case http.StatusBadRequest:
		return "", false, faults.Upstream("llm", fmt.Errorf("bad request: %s", strings.TrimSpace(string(respBody))))
	default:
		return "", false, faults.Upstream("llm", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, faults.Upstream("llm", fmt.Errorf("invalid response JSON: %w", err))
	}
	if len(parsed.Response.Content) == 0 {
		return "", false, faults.Upstream("llm", fmt.Errorf("invalid response format"))
	}

	text := strings.TrimSpace(parsed.Response.Content[0].Text)
	if text == "" {
		return "", false, faults.Upstream("llm", fmt.Errorf("empty response from model %s", modelID))
	}
	return text, false, nil
}

func cacheKey(prompt, modelID string) string {
	sum := md5.Sum([]byte(prompt))
	return fmt.Sprintf("llm:%s:%s", hex.EncodeToString(sum[:]), modelID)
}
