// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsight/platform/shared/cache"
)

// keywordModel labels parts by simple keyword lookup so tests control
// the closed label set deterministically.
type keywordModel struct {
	calls int
}

func (m *keywordModel) Label(_ context.Context, text string) (string, error) {
	m.calls++
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "both"):
		return LabelMixed, nil
	case strings.Contains(lower, "top") || strings.Contains(lower, "order value"):
		return LabelSQL, nil
	case strings.Contains(lower, "predict"):
		return LabelPredictive, nil
	case strings.Contains(lower, "why"):
		return LabelExplanation, nil
	case strings.Contains(lower, "policy") || strings.Contains(lower, "sustainability"):
		return LabelRetrieval, nil
	default:
		return "something-new", nil
	}
}

func TestSplitParts(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"who are our top customers", 1},
		{"top customers and sustainability policy", 2},
		{"a and b and c", 3},
		{"trailing and ", 1},
	}
	for _, tt := range tests {
		got := SplitParts(tt.query)
		assert.Lenf(t, got, tt.want, "SplitParts(%q)", tt.query)
	}
}

func TestClassify_SingleIntent(t *testing.T) {
	c := New(&keywordModel{}, nil)

	flags, err := c.Classify(context.Background(), "what does our sustainability policy say")
	require.NoError(t, err)

	assert.True(t, flags.RequiresRetrieval)
	assert.False(t, flags.RequiresSQL)
	assert.False(t, flags.RequiresExplanation)
}

func TestClassify_SQLForcesExplanation(t *testing.T) {
	c := New(&keywordModel{}, nil)

	flags, err := c.Classify(context.Background(), "who are our top 10 customers by order value")
	require.NoError(t, err)

	assert.True(t, flags.RequiresSQL)
	assert.True(t, flags.RequiresExplanation, "sql intent must force an explanation pass")
}

func TestClassify_MixedSetsRetrievalAndSQL(t *testing.T) {
	c := New(&keywordModel{}, nil)

	flags, err := c.Classify(context.Background(), "show both views")
	require.NoError(t, err)

	assert.True(t, flags.RequiresRetrieval)
	assert.True(t, flags.RequiresSQL)
	assert.True(t, flags.RequiresExplanation)
}

func TestClassify_HybridUnionsParts(t *testing.T) {
	model := &keywordModel{}
	c := New(model, nil)

	flags, err := c.Classify(context.Background(),
		"show top customers by order value and summarize the sustainability policy")
	require.NoError(t, err)

	assert.True(t, flags.RequiresSQL)
	assert.True(t, flags.RequiresRetrieval)
	assert.True(t, flags.RequiresExplanation)
	assert.Equal(t, 2, model.calls, "each part classified independently")
}

func TestClassify_UnknownLabelDefaultsToRetrieval(t *testing.T) {
	c := New(&keywordModel{}, nil)

	flags, err := c.Classify(context.Background(), "hum a tune")
	require.NoError(t, err)

	assert.True(t, flags.RequiresRetrieval)
	assert.False(t, flags.RequiresSQL)
}

func TestClassify_CacheHitSkipsModel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedis(client)

	model := &keywordModel{}
	c := New(model, store)
	ctx := context.Background()

	first, err := c.Classify(ctx, "who are our top 10 customers by order value")
	require.NoError(t, err)
	callsAfterFirst := model.calls

	second, err := c.Classify(ctx, "who are our top 10 customers by order value")
	require.NoError(t, err)

	assert.Equal(t, first, second, "cached result must be identical")
	assert.Equal(t, callsAfterFirst, model.calls, "cache hit must not call the model")
}
