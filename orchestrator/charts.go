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
	"fmt"
	"strconv"

	"chainsight/platform/shared/types"
)

var (
	segmentColors       = []string{"#4CAF50", "#2196F3", "#FF9800", "#F44336", "#9C27B0"}
	segmentBorderColors = []string{"#388E3C", "#1976D2", "#F57C00", "#D32F2F", "#7B1FA2"}

	customerColors = []string{
		"#4CAF50", "#2196F3", "#FF9800", "#F44336", "#9C27B0",
		"#673AB7", "#FF5722", "#795548", "#607D8B", "#E91E63",
	}
	customerBorderColors = []string{
		"#388E3C", "#1976D2", "#F57C00", "#D32F2F", "#7B1FA2",
		"#512DA8", "#E64A19", "#5D4037", "#455A64", "#C2185B",
	}

	predictionColors       = []string{"#4CAF50", "#2196F3", "#FF9800", "#F44336"}
	predictionBorderColors = []string{"#388E3C", "#1976D2", "#F57C00", "#D32F2F"}
)

// buildSQLCharts maps the shape of a SQL result set to a chart. The
// decision table is keyed on column presence in the first row; only the
// first matching shape produces a chart.
func buildSQLCharts(rows []map[string]interface{}) []types.ChartSpec {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0]

	switch {
	case hasColumns(first, "segment", "total_order_value"):
		return []types.ChartSpec{segmentValuePie(rows)}
	case hasColumns(first, "segment", "region", "order_count"):
		return []types.ChartSpec{segmentRegionBar(rows)}
	case hasColumns(first, "customer_id", "total_order_value"):
		return []types.ChartSpec{topCustomersBar(rows)}
	case hasColumns(first, "year", "avg_late_risk"):
		return []types.ChartSpec{lateRiskTrendLine(rows)}
	}
	return nil
}

// buildPredictionChart renders predicted late-delivery risk per
// shipping mode as a bar chart.
func buildPredictionChart(rows []types.PredictionRow) types.ChartSpec {
	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row.ShippingMode
		values[i] = row.AvgPredictedLateRisk
	}
	return types.ChartSpec{
		Type: "bar",
		Data: types.ChartData{
			Labels: labels,
			Datasets: []types.ChartDataset{{
				Label:           "Predicted Late Delivery Risk",
				Data:            values,
				BackgroundColor: predictionColors,
				BorderColor:     predictionBorderColors,
				BorderWidth:     1,
			}},
		},
		Options: map[string]interface{}{
			"scales": map[string]interface{}{
				"y": map[string]interface{}{
					"beginAtZero": true,
					"title":       axisTitle("Predicted Risk"),
				},
				"x": map[string]interface{}{
					"title": axisTitle("Shipping Mode"),
				},
			},
			"plugins": map[string]interface{}{
				"title": chartTitle("Predicted Late Delivery Risks by Shipping Mode"),
			},
		},
	}
}

func segmentValuePie(rows []map[string]interface{}) types.ChartSpec {
	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = asString(row["segment"])
		values[i], _ = asFloat(row["total_order_value"])
	}
	return types.ChartSpec{
		Type: "pie",
		Data: types.ChartData{
			Labels: labels,
			Datasets: []types.ChartDataset{{
				Label:           "Total Order Value ($)",
				Data:            values,
				BackgroundColor: segmentColors,
				BorderColor:     segmentBorderColors,
				BorderWidth:     1,
			}},
		},
		Options: map[string]interface{}{
			"plugins": map[string]interface{}{
				"legend": map[string]interface{}{"display": true, "position": "right"},
				"title":  chartTitle("Total Order Value by Customer Segment"),
			},
		},
	}
}

func segmentRegionBar(rows []map[string]interface{}) types.ChartSpec {
	segments := uniqueValues(rows, "segment")
	regions := uniqueValues(rows, "region")

	counts := make(map[string]map[string]float64, len(segments))
	for _, row := range rows {
		segment := asString(row["segment"])
		region := asString(row["region"])
		if counts[segment] == nil {
			counts[segment] = make(map[string]float64, len(regions))
		}
		counts[segment][region], _ = asFloat(row["order_count"])
	}

	datasets := make([]types.ChartDataset, 0, len(segments))
	for i, segment := range segments {
		values := make([]float64, len(regions))
		for j, region := range regions {
			values[j] = counts[segment][region]
		}
		color := segmentColors[i%len(segmentColors)]
		datasets = append(datasets, types.ChartDataset{
			Label:           segment,
			Data:            values,
			BackgroundColor: []string{color},
			BorderColor:     []string{color},
			BorderWidth:     1,
		})
	}

	return types.ChartSpec{
		Type: "bar",
		Data: types.ChartData{Labels: regions, Datasets: datasets},
		Options: map[string]interface{}{
			"scales": map[string]interface{}{
				"y": map[string]interface{}{
					"beginAtZero": true,
					"title":       axisTitle("Number of Orders"),
				},
				"x": map[string]interface{}{
					"title": axisTitle("Region"),
				},
			},
			"plugins": map[string]interface{}{
				"legend": map[string]interface{}{"display": true, "position": "top"},
				"title":  chartTitle("Distribution of Orders by Customer Segment and Region"),
			},
		},
	}
}

func topCustomersBar(rows []map[string]interface{}) types.ChartSpec {
	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = fmt.Sprintf("Customer %s", asString(row["customer_id"]))
		values[i], _ = asFloat(row["total_order_value"])
	}
	return types.ChartSpec{
		Type: "bar",
		Data: types.ChartData{
			Labels: labels,
			Datasets: []types.ChartDataset{{
				Label:           "Total Order Value ($)",
				Data:            values,
				BackgroundColor: customerColors,
				BorderColor:     customerBorderColors,
				BorderWidth:     1,
			}},
		},
		Options: map[string]interface{}{
			"scales": map[string]interface{}{
				"y": map[string]interface{}{
					"beginAtZero": true,
					"title":       axisTitle("Total Order Value ($)"),
				},
				"x": map[string]interface{}{
					"title": axisTitle("Customer"),
				},
			},
			"plugins": map[string]interface{}{
				"legend": map[string]interface{}{"display": false},
				"title":  chartTitle("Top 10 Customers by Total Order Value"),
			},
		},
	}
}

func lateRiskTrendLine(rows []map[string]interface{}) types.ChartSpec {
	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = asString(row["year"])
		values[i], _ = asFloat(row["avg_late_risk"])
	}
	return types.ChartSpec{
		Type: "line",
		Data: types.ChartData{
			Labels: labels,
			Datasets: []types.ChartDataset{{
				Label:           "Average Late Delivery Risk",
				Data:            values,
				BorderColor:     []string{"#4CAF50"},
				BackgroundColor: []string{"rgba(76, 175, 80, 0.2)"},
				Fill:            true,
				Tension:         0.3,
			}},
		},
		Options: map[string]interface{}{
			"scales": map[string]interface{}{
				"y": map[string]interface{}{
					"beginAtZero": true,
					"title":       axisTitle("Average Late Delivery Risk"),
				},
				"x": map[string]interface{}{
					"title": axisTitle("Year"),
				},
			},
			"plugins": map[string]interface{}{
				"legend": map[string]interface{}{"display": true},
				"title":  chartTitle("Trend of Late Delivery Risks Over Years"),
			},
		},
	}
}

func chartTitle(text string) map[string]interface{} {
	return map[string]interface{}{"display": true, "text": text}
}

func axisTitle(text string) map[string]interface{} {
	return map[string]interface{}{"display": true, "text": text}
}

func hasColumns(row map[string]interface{}, columns ...string) bool {
	for _, column := range columns {
		if _, ok := row[column]; !ok {
			return false
		}
	}
	return true
}

// uniqueValues returns the distinct values of column in first-seen
// order.
func uniqueValues(rows []map[string]interface{}, column string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		value := asString(row[column])
		if !seen[value] {
			seen[value] = true
			out = append(out, value)
		}
	}
	return out
}

// asFloat converts the numeric representations the SQL layer produces.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asString renders a cell the way users expect to read it: integral
// floats without a trailing ".0".
func asString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
