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
	"sort"
	"strings"

	"chainsight/platform/shared/types"
)

// columnDescriptions maps warehouse column names to the friendly
// headers shown in summary tables.
var columnDescriptions = map[string]string{
	"segment":               "customer segment",
	"order_count":           "number of orders",
	"product_name":          "product name",
	"market":                "market (region)",
	"avg_late_risk":         "average late delivery risk",
	"order_date":            "order date",
	"running_profit":        "cumulative profit",
	"total_profit":          "total profit",
	"shipping_mode":         "shipping mode",
	"total_order_value":     "total order value",
	"customer_id":           "customer ID",
	"region":                "region",
	"total_sales":           "total sales amount",
	"on_time_delivery_rate": "on-time delivery rate",
	"year":                  "year",
}

const (
	summaryRowLimit  = 5
	chunkExcerptSize = 200

	noResultsSummary = "I couldn't find any relevant results. Could you try rephrasing your question?"
)

// formatCell renders one table cell. Money columns get a dollar sign
// with thousands separators, rate columns three decimals.
func formatCell(column string, value interface{}) string {
	lower := strings.ToLower(column)
	if f, ok := asFloat(value); ok {
		if _, isFloat := value.(float64); isFloat &&
			(strings.Contains(lower, "profit") ||
				strings.Contains(lower, "total_order_value") ||
				strings.Contains(lower, "total_sales")) {
			return "$" + commaSeparated(f)
		}
		if strings.Contains(column, "avg_late_risk") || strings.Contains(column, "on_time_delivery_rate") {
			return fmt.Sprintf("%.3f", f)
		}
	}
	return asString(value)
}

// commaSeparated formats f with two decimals and comma thousands
// grouping, e.g. 1234567.5 -> "1,234,567.50".
func commaSeparated(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var grouped []string
	for len(whole) > 3 {
		grouped = append([]string{whole[len(whole)-3:]}, grouped...)
		whole = whole[:len(whole)-3]
	}
	grouped = append([]string{whole}, grouped...)
	return sign + strings.Join(grouped, ",") + "." + frac
}

// renderGrid draws an ASCII grid table with a double-ruled header
// separator.
func renderGrid(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(fill string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = strings.Repeat(fill, w+2)
		}
		return "+" + strings.Join(parts, "+") + "+"
	}
	formatRow := func(cells []string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = " " + cell + strings.Repeat(" ", w-len(cell)+1)
		}
		return "|" + strings.Join(parts, "|") + "|"
	}

	var b strings.Builder
	b.WriteString(line("-") + "\n")
	b.WriteString(formatRow(headers) + "\n")
	b.WriteString(line("=") + "\n")
	for _, row := range rows {
		b.WriteString(formatRow(row) + "\n")
		b.WriteString(line("-") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// sqlResultsTable renders up to five result rows with friendly headers.
// columns carries the result-set column order; when absent the columns
// of the first row are used in sorted order.
func sqlResultsTable(rows []map[string]interface{}, columns []string) string {
	if len(rows) == 0 {
		return ""
	}
	if len(columns) == 0 {
		for column := range rows[0] {
			columns = append(columns, column)
		}
		sort.Strings(columns)
	}

	headers := make([]string, len(columns))
	for i, column := range columns {
		if description, ok := columnDescriptions[column]; ok {
			headers[i] = description
		} else {
			headers[i] = column
		}
	}

	limit := len(rows)
	if limit > summaryRowLimit {
		limit = summaryRowLimit
	}
	tableRows := make([][]string, 0, limit)
	for _, row := range rows[:limit] {
		cells := make([]string, len(columns))
		for i, column := range columns {
			cells[i] = formatCell(column, row[column])
		}
		tableRows = append(tableRows, cells)
	}
	return renderGrid(headers, tableRows)
}

// predictionTable renders predicted risks per shipping mode.
func predictionTable(rows []types.PredictionRow) string {
	limit := len(rows)
	if limit > summaryRowLimit {
		limit = summaryRowLimit
	}
	tableRows := make([][]string, 0, limit)
	for _, row := range rows[:limit] {
		tableRows = append(tableRows, []string{
			row.ShippingMode,
			fmt.Sprintf("%.3f", row.AvgPredictedLateRisk),
		})
	}
	return renderGrid([]string{"Shipping Mode", "Avg Predicted Late Risk"}, tableRows)
}

// documentExcerpts renders one bullet per retrieved chunk with a
// truncated excerpt and the similarity score.
func documentExcerpts(chunks []types.Chunk) string {
	lines := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		text := strings.TrimSpace(strings.ReplaceAll(chunk.Text, "\n", " "))
		if len(text) > chunkExcerptSize {
			text = text[:chunkExcerptSize]
		}
		lines = append(lines, fmt.Sprintf(
			"- From %s (Doc ID %d, Chunk ID %d): %s... (Similarity: %.4f)",
			chunk.FileName, chunk.DocID, chunk.ChunkID, text, chunk.Similarity))
	}
	return strings.Join(lines, "\n")
}

// assembleSummary builds the turn summary in a fixed section order:
// learning content, document insights, SQL table, prediction table,
// explanation, SQL query.
func assembleSummary(response *types.TurnResponse, sqlColumns []string) string {
	var parts []string

	if response.LearningContent != "" {
		parts = append(parts, "Learning Module:\n"+response.LearningContent)
	}

	if response.DocumentSummary != "" {
		parts = append(parts, "Policy Insights:\n"+response.DocumentSummary)
	} else if len(response.DocumentResults) > 0 {
		parts = append(parts, "Relevant policies and documents:\n"+documentExcerpts(response.DocumentResults))
	}

	if len(response.SQLResults) > 0 {
		parts = append(parts, "Database results:\n"+sqlResultsTable(response.SQLResults, sqlColumns))
		if len(response.Charts) > 0 {
			parts = append(parts, "Check out the chart below to visualize the results!")
		}
	}

	if len(response.PredictionResults) > 0 {
		parts = append(parts, "Predicted late delivery risks:\n"+predictionTable(response.PredictionResults))
	}

	if response.Explanation != "" {
		parts = append(parts, "Explanation and insights: "+strings.ReplaceAll(response.Explanation, "\n", " "))
	}

	if response.SQLQuery != "" {
		parts = append(parts, "SQL query used: "+response.SQLQuery)
	}

	if len(parts) == 0 {
		return noResultsSummary
	}
	return strings.Join(parts, "\n")
}
