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
	"context"
	"sort"
	"strings"
	"sync"

	"chainsight/platform/orchestrator/embedding"
)

// commonQuestions is the catalog offered as alternatives when a
// question fails validation or matches no intent.
var commonQuestions = []string{
	"What is the total number of orders per customer segment?",
	"Which products had the highest late delivery risk by market?",
	"What is the total profit by customer segment in 2015?",
	"Which shipping mode has the highest average late delivery risk?",
	"Who are our top 10 customers by total order value?",
	"What is the distribution of orders by customer segment and region?",
	"Which shipping mode has the lowest rate of on-time deliveries?",
	"What are load optimization strategies in our logistics policy?",
	"What is the trend of late delivery risks over the years?",
}

// proactiveCandidates are follow-up prompts offered after every
// successful turn, filtered against the question just answered.
var proactiveCandidates = []string{
	"Would you like to see the distribution of orders by customer segment and region?",
	"Would you like to know which shipping mode has the highest average late delivery risk?",
	"Would you like to explore our Transportation and Logistics policy for optimal shipping modes?",
	"Would you like to see the total profit by customer segment for a specific year?",
	"Would you like to learn more about load optimization strategies?",
	"Would you like to see the trend of late delivery risks over the years?",
}

const (
	alternativeCount       = 3
	proactiveLimit         = 3
	proactiveSimilarityCap = 0.95

	profitSuggestion    = "Would you like to see the total profit by customer segment for a specific year?"
	logisticsSuggestion = "Would you like to explore our Transportation and Logistics policy for optimal shipping modes?"
)

// suggestionEngine ranks catalog questions and proactive prompts by
// embedding similarity to the user's question. Catalog embeddings are
// computed once and reused across turns.
type suggestionEngine struct {
	embedder embedding.Embedder

	mu         sync.Mutex
	catalog    [][]float32
	candidates [][]float32
}

func newSuggestionEngine(embedder embedding.Embedder) *suggestionEngine {
	return &suggestionEngine{embedder: embedder}
}

func (s *suggestionEngine) embeddings(ctx context.Context, texts []string, cached *[][]float32) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *cached != nil {
		return *cached, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	*cached = vectors
	return vectors, nil
}

// alternatives returns the three catalog questions closest to question.
// Embedding failures degrade to the head of the catalog.
func (s *suggestionEngine) alternatives(ctx context.Context, question string) []string {
	catalog, err := s.embeddings(ctx, commonQuestions, &s.catalog)
	if err != nil {
		return append([]string(nil), commonQuestions[:alternativeCount]...)
	}
	questionVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return append([]string(nil), commonQuestions[:alternativeCount]...)
	}

	ranked := rankBySimilarity(questionVector, catalog)
	suggestions := make([]string, 0, alternativeCount)
	for _, idx := range ranked {
		if len(suggestions) == alternativeCount {
			break
		}
		suggestions = append(suggestions, commonQuestions[idx])
	}
	return suggestions
}

// proactive returns up to three follow-up prompts: the two candidates
// most similar to the last question (excluding near-duplicates of it)
// plus role-specific extras.
func (s *suggestionEngine) proactive(ctx context.Context, userRole, lastQuestion string) []string {
	var suggestions []string
	lower := strings.ToLower(lastQuestion)

	candidates, err := s.embeddings(ctx, proactiveCandidates, &s.candidates)
	if err == nil {
		if questionVector, embedErr := s.embedder.Embed(ctx, lower); embedErr == nil {
			type scored struct {
				index      int
				similarity float64
			}
			var filtered []scored
			for i, candidate := range candidates {
				similarity := embedding.Cosine(questionVector, candidate)
				if similarity < proactiveSimilarityCap {
					filtered = append(filtered, scored{index: i, similarity: similarity})
				}
			}
			sort.SliceStable(filtered, func(i, j int) bool {
				return filtered[i].similarity > filtered[j].similarity
			})
			for i, entry := range filtered {
				if i == 2 {
					break
				}
				suggestions = append(suggestions, proactiveCandidates[entry.index])
			}
		}
	}

	if strings.Contains(userRole, "finance_manager") && !strings.Contains(lower, "profit") {
		suggestions = append(suggestions, profitSuggestion)
	}
	if strings.Contains(userRole, "logistics_specialist") && !strings.Contains(lower, "shipping") {
		suggestions = append(suggestions, logisticsSuggestion)
	}

	if len(suggestions) > proactiveLimit {
		suggestions = suggestions[:proactiveLimit]
	}
	return suggestions
}

// rankBySimilarity returns indices of vectors sorted by descending
// cosine similarity to the query vector.
func rankBySimilarity(query []float32, vectors [][]float32) []int {
	indices := make([]int, len(vectors))
	similarities := make([]float64, len(vectors))
	for i, vector := range vectors {
		indices[i] = i
		similarities[i] = embedding.Cosine(query, vector)
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return similarities[indices[i]] > similarities[indices[j]]
	})
	return indices
}
