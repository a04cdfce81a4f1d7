// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisScoreboard_Rank(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	board := NewRedisScoreboard(client)
	ctx := context.Background()

	pos, err := board.Update(ctx, "alice", 110)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = board.Update(ctx, "bob", 120)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = board.Update(ctx, "alice", 110)
	require.NoError(t, err)
	assert.Equal(t, 2, pos, "alice drops behind bob's higher score")
}

func TestAwardBadge_ExplorerAtFiveQuestions(t *testing.T) {
	session := NewSession("u")
	var messages []string
	for i := 0; i < 6; i++ {
		if msg := awardBadge(session); msg != "" {
			messages = append(messages, msg)
		}
	}
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "'Explorer' badge")
	assert.Equal(t, []string{badgeExplorer}, session.Badges)
}

func TestAwardBadge_AchieverOnStreak(t *testing.T) {
	session := NewSession("u")
	session.SuccessfulQueries = 3

	msg := awardBadge(session)
	assert.Contains(t, msg, "'Achiever' badge")

	// Once earned, the badge is not awarded again even if the streak
	// count sits at three.
	assert.Empty(t, awardBadge(session))
}

func TestAwardBadge_PolicyExpert(t *testing.T) {
	session := NewSession("u")
	for i := 0; i < 5; i++ {
		session.remember("What does our logistics policy say?", "answer")
	}
	session.remember("unrelated question", "answer")

	session.QueryCount = 9 // badge check happens on the 10th question
	msg := awardBadge(session)
	assert.Contains(t, msg, "'Policy Expert' badge")
}

func TestAwardBadge_PolicyExpertNeedsFivePolicyQuestions(t *testing.T) {
	session := NewSession("u")
	session.remember("What does our logistics policy say?", "answer")
	session.QueryCount = 9
	assert.Empty(t, awardBadge(session))
}

func TestSessionHistoryBounded(t *testing.T) {
	session := NewSession("u")
	for i := 0; i < 15; i++ {
		session.remember("question", "answer")
	}
	assert.Len(t, session.History, historyLimit)
}
