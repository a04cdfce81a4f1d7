// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGoBack(t *testing.T) {
	n, ok := parseGoBack("go back to query 3")
	require.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = parseGoBack("Go Back To Query 12")
	require.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = parseGoBack("please go back to query 3")
	assert.False(t, ok, "command must appear at the start of the question")

	_, ok = parseGoBack("go back to query")
	assert.False(t, ok)
}

func TestStripVoicePrefix(t *testing.T) {
	assert.Equal(t, "show top customers", stripVoicePrefix("voice: show top customers"))
	assert.Equal(t, "show top customers", stripVoicePrefix("Voice:show top customers"))
	assert.Equal(t, "plain question", stripVoicePrefix("plain question"))
}

func TestExtractMarketYear(t *testing.T) {
	market, year, err := extractMarketYear("Predict the late delivery risk in LATAM in 2019")
	require.NoError(t, err)
	assert.Equal(t, "LATAM", market)
	assert.Equal(t, 2019, year)

	market, year, err = extractMarketYear("predict risk in Pacific Asia in 2018")
	require.NoError(t, err)
	assert.Equal(t, "Pacific Asia", market)
	assert.Equal(t, 2018, year)

	_, _, err = extractMarketYear("predict the late delivery risk")
	require.Error(t, err)
}

func TestExtractLearningTopic(t *testing.T) {
	topic, ok := extractLearningTopic("What is load optimization?")
	require.True(t, ok)
	assert.Equal(t, "load optimization", topic)

	topic, ok = extractLearningTopic("what is sustainability?")
	require.True(t, ok)
	assert.Equal(t, "sustainability", topic)

	_, ok = extractLearningTopic("what is demand forecasting?")
	assert.False(t, ok, "only the closed topic set is recognized")

	_, ok = extractLearningTopic("tell me about load optimization")
	assert.False(t, ok)
}

func TestTopicHintPrefix_Priority(t *testing.T) {
	// Sustainability outranks shipping when both keywords appear.
	prefix, ok := topicHintPrefix("what about sustainability in shipping?")
	require.True(t, ok)
	assert.Equal(t, "Regarding sustainability practices: ", prefix)

	prefix, ok = topicHintPrefix("how is our shipping performing?")
	require.True(t, ok)
	assert.Equal(t, "Regarding shipping and logistics: ", prefix)

	_, ok = topicHintPrefix("total orders per segment")
	assert.False(t, ok)
}
