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

package sqlagent

import (
	"context"
	"fmt"
	"strings"

	"chainsight/platform/orchestrator/llm"
)

// warehouseSchema describes the analytics tables the generator may
// reference.
const warehouseSchema = `Tables:
- customers: customer_id (INTEGER, PK), segment (VARCHAR)
- products: product_card_id (INTEGER, PK), product_name (VARCHAR)
- orders: order_id (INTEGER, PK), customer_id (INTEGER, FK to customers), order_date (TIMESTAMP), market (VARCHAR)
- order_items: order_item_id (INTEGER, PK), order_id (INTEGER, FK to orders), product_card_id (INTEGER, FK to products), profit_per_order (FLOAT)
- shipping: shipping_id (INTEGER, PK), order_id (INTEGER, FK to orders), shipping_mode (VARCHAR), late_delivery_risk (INTEGER, 0 or 1 indicating risk)`

// fewShotExamples anchor the generator's output shape. Column aliases
// here drive downstream chart and table formatting.
const fewShotExamples = `Example 1:
Question: What is the total number of orders per customer segment?
SQL: SELECT c.segment, COUNT(o.order_id) as order_count FROM orders o JOIN customers c ON o.customer_id = c.customer_id GROUP BY c.segment;

Example 2:
Question: Which products had the highest late delivery risk by market?
SQL: SELECT p.product_name, o.market, AVG(s.late_delivery_risk) as avg_late_risk FROM orders o JOIN order_items oi ON o.order_id = oi.order_id JOIN products p ON oi.product_card_id = p.product_card_id JOIN shipping s ON o.order_id = s.order_id GROUP BY p.product_name, o.market ORDER BY avg_late_risk DESC LIMIT 5;

Example 3:
Question: Who are our top 10 customers by total order value?
SQL: SELECT c.customer_id, SUM(oi.profit_per_order) as total_order_value FROM customers c JOIN orders o ON c.customer_id = o.customer_id JOIN order_items oi ON o.order_id = oi.order_id GROUP BY c.customer_id ORDER BY total_order_value DESC LIMIT 10;

Example 4:
Question: What is the distribution of orders by customer segment and region?
SQL: SELECT c.segment, o.market as region, COUNT(o.order_id) as order_count FROM orders o JOIN customers c ON o.customer_id = c.customer_id GROUP BY c.segment, o.market;

Example 5:
Question: Which shipping mode has the lowest rate of on-time deliveries?
SQL: SELECT s.shipping_mode, (1 - AVG(s.late_delivery_risk)) as on_time_delivery_rate FROM shipping s GROUP BY s.shipping_mode ORDER BY on_time_delivery_rate ASC LIMIT 1;

Example 6:
Question: What is the trend of late delivery risks over the years?
SQL: SELECT EXTRACT(YEAR FROM o.order_date) as year, AVG(s.late_delivery_risk) as avg_late_risk FROM orders o JOIN shipping s ON o.order_id = s.order_id GROUP BY EXTRACT(YEAR FROM o.order_date) ORDER BY year;`

// Markers the model emits instead of SQL when the question is out of
// reach for plain querying.
const (
	tooComplexMarker = "COMPLEXITY_FEEDBACK"
	predictionMarker = "REQUIRES_PREDICTION"
)

// LLMGenerator produces SQL through the LLM gateway, standing behind
// the Generator contract.
type LLMGenerator struct {
	llm llm.Generator
}

// NewLLMGenerator creates an LLMGenerator backed by generator.
func NewLLMGenerator(generator llm.Generator) *LLMGenerator {
	return &LLMGenerator{llm: generator}
}

// GenerateSQL implements Generator. The model's marker responses map to
// the typed signals the coordinator reacts to.
func (g *LLMGenerator) GenerateSQL(ctx context.Context, question string, simplify bool) (string, error) {
	guidance := ""
	if simplify {
		guidance = "\nThe previous attempt was too complex. Produce the simplest possible single SELECT that still answers the question, avoiding window functions and subqueries."
	}

	prompt := fmt.Sprintf(`You translate supply chain questions into PostgreSQL queries.

Schema:
%s

%s

Rules:
- Produce exactly one SELECT statement, no commentary.
- If the question asks to predict or forecast future values, respond with only the word %s.
- If the question cannot be answered with a single reasonable SELECT, respond with only the word %s.%s

Question: %s
SQL:`, warehouseSchema, fewShotExamples, predictionMarker, tooComplexMarker, guidance, question)

	response, err := g.llm.Generate(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("SQL generation failed: %w", err)
	}

	statement := stripCodeFences(response)
	switch {
	case strings.Contains(statement, predictionMarker):
		return "", ErrNeedsPrediction
	case strings.Contains(statement, tooComplexMarker):
		return "", ErrTooComplex
	}
	return statement, nil
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
