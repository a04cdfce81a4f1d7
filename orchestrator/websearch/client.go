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

// Package websearch fetches external context snippets for explanation
// prompts. Search failures degrade to a canned message; they never fail
// the turn.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/logger"
)

// DegradedMessage is returned when the search service is unavailable.
const DegradedMessage = "No external knowledge available due to a web search error."

// NoResultsMessage is returned when the search succeeds but yields no
// usable snippets.
const NoResultsMessage = "No relevant web search results found."

const (
	snippetLimit = 2
	cacheTTL     = 2 * time.Hour
)

// Searcher is the contract consumed by the coordinator.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Client calls a serper.dev-compatible search endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cache      cache.Store
	log        *logger.Logger
}

// NewClient creates a search client. store may be nil to disable
// caching.
func NewClient(endpoint, apiKey string, store cache.Store) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: store,
		log:   logger.New("web-search"),
	}
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type searchResponse struct {
	Organic []struct {
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search returns the top snippets for query joined into one string. Any
// failure returns DegradedMessage with the underlying error.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, "websearch:"+query); err == nil && ok {
			c.log.Info("", "", "web search cache hit", nil)
			return cached, nil
		}
	}

	body, err := json.Marshal(searchRequest{Query: query, Num: snippetLimit})
	if err != nil {
		return DegradedMessage, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return DegradedMessage, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("", "", "web search request failed", map[string]interface{}{"error": err.Error()})
		return DegradedMessage, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	c.log.InfoWithDuration("", "", "web search completed",
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"status": resp.StatusCode})
	if err != nil {
		return DegradedMessage, err
	}
	if resp.StatusCode != http.StatusOK {
		return DegradedMessage, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return DegradedMessage, err
	}

	var snippets []string
	for i, item := range parsed.Organic {
		if i >= snippetLimit {
			break
		}
		if item.Snippet != "" {
			snippets = append(snippets, item.Snippet)
		}
	}

	knowledge := NoResultsMessage
	if len(snippets) > 0 {
		knowledge = strings.Join(snippets, " ")
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, "websearch:"+query, knowledge, cacheTTL); err != nil {
			c.log.Warn("", "", "failed to cache search result", map[string]interface{}{"error": err.Error()})
		}
	}
	return knowledge, nil
}
