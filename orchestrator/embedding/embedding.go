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

// Package embedding provides the client for the remote sentence-embedding
// service and the vector similarity helpers used for context inference
// and suggestion ranking. Embedding failures are permanent for a given
// call; they are not retried.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/shared/logger"
)

// Dimension is the fixed embedding dimension of the deployed model.
const Dimension = 384

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client calls the remote embedding endpoint and memoizes results
// per-process. Successful embeddings only are memoized.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *logger.Logger

	mu   sync.Mutex
	memo map[string][]float32
}

// NewClient creates an embedding client.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:  logger.New("embedding"),
		memo: make(map[string][]float32),
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if vec, ok := c.memo[text]; ok {
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, faults.Upstream("embedding", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, faults.Upstream("embedding", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Upstream("embedding", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	c.log.InfoWithDuration("", "", "embedding request completed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{"status": resp.StatusCode})
	if err != nil {
		return nil, faults.Upstream("embedding", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.Upstream("embedding", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, faults.Upstream("embedding", fmt.Errorf("invalid response JSON: %w", err))
	}
	if len(parsed.Embedding) == 0 {
		return nil, faults.Upstream("embedding", fmt.Errorf("empty embedding"))
	}

	c.mu.Lock()
	c.memo[text] = parsed.Embedding
	c.mu.Unlock()
	return parsed.Embedding, nil
}

// Cosine returns the cosine similarity of two vectors, 0 when either is
// zero-length or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
