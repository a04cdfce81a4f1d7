// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package learning

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsight/platform/shared/cache"
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

func TestContent_GeneratesAndCaches(t *testing.T) {
	model := &countingLLM{text: "Load optimization is about using capacity well."}
	m := New(model, cache.NewMemory(10))
	ctx := context.Background()

	first, err := m.Content(ctx, "load optimization")
	require.NoError(t, err)
	assert.Equal(t, model.text, first)

	second, err := m.Content(ctx, "load optimization")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, model.calls, "second request is served from cache")

	_, err = m.Content(ctx, "sustainability")
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls, "topics are cached independently")
}

func TestContent_GenerationFailure(t *testing.T) {
	m := New(&countingLLM{err: fmt.Errorf("gateway down")}, nil)

	_, err := m.Content(context.Background(), "sustainability")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate learning content for sustainability")
}
