// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsight/platform/shared/types"
)

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "$1,234,567.50", formatCell("total_order_value", 1234567.5))
	assert.Equal(t, "$-420.00", formatCell("total_profit", -420.0))
	assert.Equal(t, "0.123", formatCell("avg_late_risk", 0.12345))
	assert.Equal(t, "0.950", formatCell("on_time_delivery_rate", 0.95))
	assert.Equal(t, "Consumer", formatCell("segment", "Consumer"))
	assert.Equal(t, "42", formatCell("order_count", 42.0))
}

func TestSQLResultsTable(t *testing.T) {
	rows := []map[string]interface{}{
		{"segment": "Consumer", "total_order_value": 1000.0},
		{"segment": "Corporate", "total_order_value": 2500.5},
	}
	table := sqlResultsTable(rows, []string{"segment", "total_order_value"})

	assert.Contains(t, table, "customer segment", "headers use the friendly descriptions")
	assert.Contains(t, table, "total order value")
	assert.Contains(t, table, "$1,000.00")
	assert.Contains(t, table, "$2,500.50")
	assert.True(t, strings.HasPrefix(table, "+"), "grid tables are framed")
	assert.Contains(t, table, "+=", "header separator is double-ruled")
}

func TestSQLResultsTable_CapsAtFiveRows(t *testing.T) {
	var rows []map[string]interface{}
	for i := 0; i < 8; i++ {
		rows = append(rows, map[string]interface{}{"order_count": float64(i)})
	}
	table := sqlResultsTable(rows, []string{"order_count"})
	assert.Contains(t, table, "| 4")
	assert.NotContains(t, table, "| 5")
}

func TestAssembleSummary_SectionOrder(t *testing.T) {
	response := types.NewTurnResponse("q")
	response.DocumentSummary = "policy overview"
	response.SQLResults = []map[string]interface{}{{"order_count": 3.0}}
	response.SQLQuery = "SELECT count(*) FROM orders"
	response.Explanation = "it means\nthings"
	response.PredictionResults = []types.PredictionRow{{ShippingMode: "Standard Class", AvgPredictedLateRisk: 0.42}}
	response.Charts = []types.ChartSpec{{Type: "bar"}}

	summary := assembleSummary(response, []string{"order_count"})

	policyIdx := strings.Index(summary, "Policy Insights:")
	dbIdx := strings.Index(summary, "Database results:")
	chartIdx := strings.Index(summary, "Check out the chart below")
	predIdx := strings.Index(summary, "Predicted late delivery risks:")
	explainIdx := strings.Index(summary, "Explanation and insights: it means things")
	queryIdx := strings.Index(summary, "SQL query used: SELECT count(*) FROM orders")

	for _, idx := range []int{policyIdx, dbIdx, chartIdx, predIdx, explainIdx, queryIdx} {
		require.GreaterOrEqual(t, idx, 0)
	}
	assert.Less(t, policyIdx, dbIdx)
	assert.Less(t, dbIdx, chartIdx)
	assert.Less(t, chartIdx, predIdx)
	assert.Less(t, predIdx, explainIdx)
	assert.Less(t, explainIdx, queryIdx)
}

func TestAssembleSummary_Empty(t *testing.T) {
	response := types.NewTurnResponse("q")
	assert.Equal(t, noResultsSummary, assembleSummary(response, nil))
}

func TestDocumentExcerpts_Truncation(t *testing.T) {
	long := strings.Repeat("policy ", 60)
	chunks := []types.Chunk{{
		DocID: 1, ChunkID: 2, FileName: "logistics_policy.pdf",
		Text: long, Similarity: 0.8765,
	}}
	excerpt := documentExcerpts(chunks)
	assert.Contains(t, excerpt, "From logistics_policy.pdf (Doc ID 1, Chunk ID 2)")
	assert.Contains(t, excerpt, "... (Similarity: 0.8765)")
	assert.LessOrEqual(t, len(excerpt), chunkExcerptSize+100)
}
