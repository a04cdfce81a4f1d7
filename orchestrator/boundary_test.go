// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chainsight/platform/shared/types"
)

type slowHandler struct {
	delay    time.Duration
	response *types.TurnResponse
}

func (h *slowHandler) HandleTurn(ctx context.Context, _ types.TurnRequest) *types.TurnResponse {
	select {
	case <-time.After(h.delay):
	case <-ctx.Done():
	}
	return h.response
}

func TestRunTurn_CompletesWithinBudget(t *testing.T) {
	want := types.NewTurnResponse("q")
	handler := &slowHandler{delay: time.Millisecond, response: want}

	got := RunTurn(context.Background(), handler, types.TurnRequest{Question: "q"}, time.Second)
	assert.Same(t, want, got)
}

func TestRunTurn_SynthesizesTimeoutResponse(t *testing.T) {
	handler := &slowHandler{delay: time.Minute, response: types.NewTurnResponse("q")}

	got := RunTurn(context.Background(), handler, types.TurnRequest{Question: "slow question"}, 20*time.Millisecond)

	assert.Equal(t, types.StatusError, got.Status)
	assert.Equal(t, "slow question", got.Question)
	assert.Equal(t, TimeoutSummary, got.Summary)
	assert.Contains(t, got.Errors[0], "timed out")
}
