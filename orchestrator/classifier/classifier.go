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

// Package classifier maps a natural-language question to the set of
// sub-agents it requires. Hybrid questions joined by the literal word
// "and" are classified part by part and the intent flags unioned.
package classifier

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/logger"
)

// Intent labels produced by the pretrained text classifier. The model is
// opaque to this package; it only has to return one of these values.
const (
	LabelMixed       = "mixed"
	LabelRetrieval   = "retrieval"
	LabelSQL         = "sql"
	LabelPredictive  = "predictive"
	LabelExplanation = "explanation"
)

// conjunction is the hybrid-query split delimiter.
const conjunction = " and "

const cacheTTL = 2 * time.Hour

// IntentModel is the opaque pretrained classifier for a single query
// part.
type IntentModel interface {
	Label(ctx context.Context, text string) (string, error)
}

// IntentFlags indicates which sub-agents a query requires. The flags are
// independent booleans, not mutually exclusive.
type IntentFlags struct {
	RequiresRetrieval   bool `json:"requires_retrieval"`
	RequiresSQL         bool `json:"requires_sql"`
	RequiresPredictive  bool `json:"requires_predictive"`
	RequiresExplanation bool `json:"requires_explanation"`
}

// Classifier combines the intent model with a distributed result cache.
type Classifier struct {
	model IntentModel
	cache cache.Store
	log   *logger.Logger
}

// New creates a Classifier. store may be nil to disable caching.
func New(model IntentModel, store cache.Store) *Classifier {
	return &Classifier{
		model: model,
		cache: store,
		log:   logger.New("classifier"),
	}
}

// SplitParts splits a question on the conjunction delimiter, trimming
// whitespace and dropping empty parts.
func SplitParts(query string) []string {
	raw := strings.Split(query, conjunction)
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Classify determines the intent flags for query. The cache key is
// computed over the whole original query even when the classification
// internally splits it, so hybrid queries sharing sub-parts are not
// cache-shared at the sub-part level.
func (c *Classifier) Classify(ctx context.Context, query string) (IntentFlags, error) {
	key := cacheKey(query)

	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			var flags IntentFlags
			if err := json.Unmarshal([]byte(cached), &flags); err == nil {
				c.log.Info("", "", "classification cache hit", nil)
				return flags, nil
			}
		}
	}

	parts := SplitParts(query)
	if len(parts) <= 1 {
		parts = []string{query}
	} else {
		c.log.Info("", "", "detected hybrid query", map[string]interface{}{"parts": len(parts)})
	}

	var flags IntentFlags
	sawSQLOrMixed := false
	for _, part := range parts {
		label, err := c.model.Label(ctx, part)
		if err != nil {
			return IntentFlags{}, fmt.Errorf("intent model failed for part %q: %w", part, err)
		}
		c.log.Debug("", "", "part classified", map[string]interface{}{"label": label})

		switch label {
		case LabelMixed:
			flags.RequiresRetrieval = true
			flags.RequiresSQL = true
			sawSQLOrMixed = true
		case LabelSQL:
			flags.RequiresSQL = true
			sawSQLOrMixed = true
		case LabelPredictive:
			flags.RequiresPredictive = true
		case LabelExplanation:
			flags.RequiresExplanation = true
		case LabelRetrieval:
			flags.RequiresRetrieval = true
		default:
			// Unknown labels default to retrieval.
			flags.RequiresRetrieval = true
		}
	}

	// SQL results always get an explanation pass.
	if sawSQLOrMixed {
		flags.RequiresExplanation = true
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(flags); err == nil {
			if err := c.cache.Set(ctx, key, string(encoded), cacheTTL); err != nil {
				c.log.Warn("", "", "failed to cache classification", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return flags, nil
}

func cacheKey(query string) string {
	sum := md5.Sum([]byte(query))
	return "query_classification:" + hex.EncodeToString(sum[:])
}
