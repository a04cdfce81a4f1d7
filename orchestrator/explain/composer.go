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

// Package explain merges heterogeneous sub-agent results into one
// natural-language explanation through the LLM gateway.
package explain

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"chainsight/platform/orchestrator/llm"
	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/logger"
	"chainsight/platform/shared/types"
)

// FallbackText is used when the language model cannot produce an
// explanation; the raw data is still returned to the user.
const FallbackText = "I couldn't generate an explanation due to an error with the language model. Here's the raw data instead."

// NothingToExplain is returned when no results of any kind are present.
const NothingToExplain = "I couldn't find any results to explain. Let's try a different query!"

const (
	maxRowsInPrompt = 5
	cacheTTL        = 2 * time.Hour
)

// Input collects everything the composer may weave into an explanation.
type Input struct {
	Question           string
	SQLQuery           string
	SQLResults         []map[string]interface{}
	DocumentResults    []types.Chunk
	PredictionResults  []types.PredictionRow
	WebSearchKnowledge string
}

// Composer builds explanations.
type Composer struct {
	llm   llm.Generator
	cache cache.Store
	log   *logger.Logger
}

// New creates a Composer. store may be nil to disable caching.
func New(generator llm.Generator, store cache.Store) *Composer {
	return &Composer{
		llm:   generator,
		cache: store,
		log:   logger.New("explanation"),
	}
}

// ExplainResults produces a single-line explanation of the combined
// results. LLM failures degrade to FallbackText rather than erroring.
func (c *Composer) ExplainResults(ctx context.Context, input Input) string {
	if len(input.SQLResults) == 0 && len(input.DocumentResults) == 0 && len(input.PredictionResults) == 0 {
		return NothingToExplain
	}

	key := cacheKey(input)
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			c.log.Info("", "", "explanation cache hit", nil)
			return cached
		}
	}

	explanation, err := c.llm.Generate(ctx, buildPrompt(input), "")
	if err != nil || strings.TrimSpace(explanation) == "" {
		if err != nil {
			c.log.Error("", "", "explanation generation failed", map[string]interface{}{"error": err.Error()})
		}
		return FallbackText
	}

	explanation = strings.ReplaceAll(explanation, "\n", " ")
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, explanation, cacheTTL); err != nil {
			c.log.Warn("", "", "failed to cache explanation", map[string]interface{}{"error": err.Error()})
		}
	}
	return explanation
}

func buildPrompt(input Input) string {
	sqlResults := "No SQL results available."
	if len(input.SQLResults) > 0 {
		rows := input.SQLResults
		if len(rows) > maxRowsInPrompt {
			rows = rows[:maxRowsInPrompt]
		}
		parts := make([]string, len(rows))
		for i, row := range rows {
			parts[i] = fmt.Sprintf("%v", row)
		}
		sqlResults = strings.Join(parts, " ")
	}

	docResults := "No document retrieval results available."
	if len(input.DocumentResults) > 0 {
		var parts []string
		for _, chunk := range input.DocumentResults {
			parts = append(parts, fmt.Sprintf("Document ID %d, Chunk ID %d from %s: %s",
				chunk.DocID, chunk.ChunkID, chunk.FileName, chunk.Text))
		}
		docResults = strings.Join(parts, " ")
	}

	var predictions string
	if len(input.PredictionResults) > 0 {
		var parts []string
		for _, row := range input.PredictionResults {
			parts = append(parts, fmt.Sprintf("Shipping Mode: %s, Predicted Late Delivery Risk: %.3f",
				row.ShippingMode, row.AvgPredictedLateRisk))
		}
		predictions = strings.Join(parts, " ")
	}

	return fmt.Sprintf(`Explain the query results for the question: %q

SQL Query:
%s

SQL Results (up to 5 rows):
%s

Document Chunks:
%s

Predicted Results:
%s

External Knowledge:
%s

Tasks:
1. Explain the SQL results: describe the data, highlight trends, and suggest business implications.
2. Analyze document results: highlight key points and actionable insights.
3. Explain predicted late delivery risks (if any) and their implications.
4. Provide 2-3 actionable business recommendations.

Return the explanation as plain text.
`, input.Question, input.SQLQuery, sqlResults, docResults, predictions, input.WebSearchKnowledge)
}

func cacheKey(input Input) string {
	composite := fmt.Sprintf("%s|%s|%v|%v|%v",
		input.Question, input.SQLQuery, input.SQLResults, input.DocumentResults, input.PredictionResults)
	sum := md5.Sum([]byte(composite))
	return "explanation:" + hex.EncodeToString(sum[:])
}
