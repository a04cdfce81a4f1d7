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

package orchestrator

import (
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // postgres driver

	"chainsight/platform/config"
	"chainsight/platform/orchestrator/classifier"
	"chainsight/platform/orchestrator/embedding"
	"chainsight/platform/orchestrator/explain"
	"chainsight/platform/orchestrator/learning"
	"chainsight/platform/orchestrator/llm"
	"chainsight/platform/orchestrator/predictive"
	"chainsight/platform/orchestrator/retrieval"
	"chainsight/platform/orchestrator/sqlagent"
	"chainsight/platform/orchestrator/websearch"
	"chainsight/platform/shared/cache"
)

// Bootstrap builds a fully wired Coordinator from configuration. The
// returned cleanup closes the database and redis connections.
func Bootstrap(cfg config.Config) (*Coordinator, func() error, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	remote := cache.NewRedis(redisClient)
	layered := cache.NewLayered(cache.NewMemory(1024), remote)

	llmClient := llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey, layered)
	embedder := embedding.NewClient(cfg.EmbeddingEndpoint)

	coordinator := New(Deps{
		Classifier: classifier.New(classifier.NewLLMModel(llmClient), remote),
		Retriever:  retrieval.New(db, embedder, llmClient, cache.NewMemory(512)),
		SQL:        sqlagent.New(db, sqlagent.NewLLMGenerator(llmClient)),
		Predictor:  predictive.New(db),
		Search:     websearch.NewClient(cfg.SearchEndpoint, cfg.SearchAPIKey, cache.NewMemory(256)),
		Learning:   learning.New(llmClient, cache.NewMemory(64)),
		Explainer:  explain.New(llmClient, cache.NewMemory(256)),
		Embedder:   embedder,
		Scoreboard: NewRedisScoreboard(redisClient),
		UserID:     cfg.UserID,
	})

	cleanup := func() error {
		redisErr := redisClient.Close()
		if dbErr := db.Close(); dbErr != nil {
			return dbErr
		}
		return redisErr
	}
	return coordinator, cleanup, nil
}
