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

// Package learning produces short educational explanations for the small
// fixed set of supply-chain topics the coordinator recognizes.
package learning

import (
	"context"
	"fmt"
	"time"

	"chainsight/platform/orchestrator/llm"
	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/logger"
)

const cacheTTL = 2 * time.Hour

// Module generates learning content through the LLM gateway.
type Module struct {
	llm   llm.Generator
	cache cache.Store
	log   *logger.Logger
}

// New creates a learning Module. store may be nil to disable caching.
func New(generator llm.Generator, store cache.Store) *Module {
	return &Module{
		llm:   generator,
		cache: store,
		log:   logger.New("learning-module"),
	}
}

// Content returns a brief educational explanation of topic.
func (m *Module) Content(ctx context.Context, topic string) (string, error) {
	key := "learning:" + topic
	if m.cache != nil {
		if cached, ok, err := m.cache.Get(ctx, key); err == nil && ok {
			m.log.Info("", "", "learning content cache hit", map[string]interface{}{"topic": topic})
			return cached, nil
		}
	}

	prompt := fmt.Sprintf(`Provide a brief educational explanation (100-150 words) on the supply chain topic: %q.
Include a definition, its importance in supply chain management, and a simple example.
Format the response as plain text.

Topic: %s

Explanation:
`, topic, topic)

	content, err := m.llm.Generate(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("failed to generate learning content for %s: %w", topic, err)
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, key, content, cacheTTL); err != nil {
			m.log.Warn("", "", "failed to cache learning content", map[string]interface{}{"error": err.Error()})
		}
	}
	return content, nil
}
