// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsight/platform/shared/types"
)

func TestBuildSQLCharts_SegmentValuePie(t *testing.T) {
	rows := []map[string]interface{}{
		{"segment": "Consumer", "total_order_value": 100.0},
		{"segment": "Corporate", "total_order_value": 200.0},
	}
	charts := buildSQLCharts(rows)
	require.Len(t, charts, 1)
	assert.Equal(t, "pie", charts[0].Type)
	assert.Equal(t, "Total Order Value by Customer Segment", charts[0].Title())
	assert.Equal(t, []string{"Consumer", "Corporate"}, charts[0].Data.Labels)
	assert.Equal(t, []float64{100, 200}, charts[0].Data.Datasets[0].Data)
}

func TestBuildSQLCharts_SegmentRegionBar(t *testing.T) {
	rows := []map[string]interface{}{
		{"segment": "Consumer", "region": "West", "order_count": 5.0},
		{"segment": "Consumer", "region": "East", "order_count": 3.0},
		{"segment": "Corporate", "region": "West", "order_count": 2.0},
	}
	charts := buildSQLCharts(rows)
	require.Len(t, charts, 1)
	assert.Equal(t, "bar", charts[0].Type)
	assert.Equal(t, "Distribution of Orders by Customer Segment and Region", charts[0].Title())
	assert.Equal(t, []string{"West", "East"}, charts[0].Data.Labels)

	require.Len(t, charts[0].Data.Datasets, 2)
	assert.Equal(t, "Consumer", charts[0].Data.Datasets[0].Label)
	assert.Equal(t, []float64{5, 3}, charts[0].Data.Datasets[0].Data)
	assert.Equal(t, "Corporate", charts[0].Data.Datasets[1].Label)
	assert.Equal(t, []float64{2, 0}, charts[0].Data.Datasets[1].Data, "missing region fills with zero")
}

func TestBuildSQLCharts_TopCustomersBar(t *testing.T) {
	rows := []map[string]interface{}{
		{"customer_id": 101.0, "total_order_value": 9000.0},
		{"customer_id": 102.0, "total_order_value": 8000.0},
	}
	charts := buildSQLCharts(rows)
	require.Len(t, charts, 1)
	assert.Equal(t, "bar", charts[0].Type)
	assert.Equal(t, "Top 10 Customers by Total Order Value", charts[0].Title())
	assert.Equal(t, []string{"Customer 101", "Customer 102"}, charts[0].Data.Labels)
}

func TestBuildSQLCharts_LateRiskTrendLine(t *testing.T) {
	rows := []map[string]interface{}{
		{"year": 2017.0, "avg_late_risk": 0.4},
		{"year": 2018.0, "avg_late_risk": 0.5},
	}
	charts := buildSQLCharts(rows)
	require.Len(t, charts, 1)
	assert.Equal(t, "line", charts[0].Type)
	assert.Equal(t, "Trend of Late Delivery Risks Over Years", charts[0].Title())
	assert.Equal(t, []string{"2017", "2018"}, charts[0].Data.Labels)
	assert.True(t, charts[0].Data.Datasets[0].Fill)
}

func TestBuildSQLCharts_NoMatchingShape(t *testing.T) {
	rows := []map[string]interface{}{{"product_name": "Widget", "total_sales": 12.0}}
	assert.Empty(t, buildSQLCharts(rows))
	assert.Empty(t, buildSQLCharts(nil))
}

func TestBuildPredictionChart(t *testing.T) {
	rows := []types.PredictionRow{
		{ShippingMode: "First Class", AvgPredictedLateRisk: 0.6},
		{ShippingMode: "Standard Class", AvgPredictedLateRisk: 0.3},
	}
	chart := buildPredictionChart(rows)
	assert.Equal(t, "bar", chart.Type)
	assert.Equal(t, "Predicted Late Delivery Risks by Shipping Mode", chart.Title())
	assert.Equal(t, []string{"First Class", "Standard Class"}, chart.Data.Labels)
	assert.Equal(t, []float64{0.6, 0.3}, chart.Data.Datasets[0].Data)
}
