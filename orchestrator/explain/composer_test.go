// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package explain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/types"
)

type countingLLM struct {
	text  string
	err   error
	calls int
}

func (l *countingLLM) Generate(context.Context, string, string) (string, error) {
	l.calls++
	return l.text, l.err
}

func TestExplainResults_NothingToExplain(t *testing.T) {
	c := New(&countingLLM{}, nil)
	got := c.ExplainResults(context.Background(), Input{Question: "why"})
	assert.Equal(t, NothingToExplain, got)
}

func TestExplainResults_FlattensNewlines(t *testing.T) {
	model := &countingLLM{text: "line one\nline two"}
	c := New(model, nil)

	got := c.ExplainResults(context.Background(), Input{
		Question:   "top customers",
		SQLResults: []map[string]interface{}{{"customer_id": 1}},
	})
	assert.Equal(t, "line one line two", got)
}

func TestExplainResults_FallbackOnLLMError(t *testing.T) {
	model := &countingLLM{err: fmt.Errorf("model down")}
	c := New(model, nil)

	got := c.ExplainResults(context.Background(), Input{
		Question:          "risk",
		PredictionResults: []types.PredictionRow{{ShippingMode: "First Class", AvgPredictedLateRisk: 0.5}},
	})
	assert.Equal(t, FallbackText, got)
}

func TestExplainResults_CachedByCompositeKey(t *testing.T) {
	model := &countingLLM{text: "stable explanation"}
	c := New(model, cache.NewMemory(10))
	ctx := context.Background()

	input := Input{
		Question:   "top customers",
		SQLQuery:   "SELECT 1",
		SQLResults: []map[string]interface{}{{"customer_id": 1}},
	}

	first := c.ExplainResults(ctx, input)
	second := c.ExplainResults(ctx, input)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, model.calls, "second call must hit the cache")

	// A different question must miss.
	input.Question = "different"
	_ = c.ExplainResults(ctx, input)
	assert.Equal(t, 2, model.calls)
}
