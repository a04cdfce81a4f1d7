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

// Package predictive estimates late-delivery risk per shipping mode for
// a market and year. The estimate is derived from historical shipping
// outcomes; the model internals are outside the orchestration core.
package predictive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/shared/logger"
	"chainsight/platform/shared/types"
)

// Estimator looks up risk estimates from the warehouse.
type Estimator struct {
	db  *sql.DB
	log *logger.Logger
}

// New creates an Estimator.
func New(db *sql.DB) *Estimator {
	return &Estimator{
		db:  db,
		log: logger.New("predictive"),
	}
}

const riskQuery = `SELECT s.shipping_mode, AVG(s.late_delivery_risk) AS avg_predicted_late_risk
FROM orders o
JOIN shipping s ON o.order_id = s.order_id
WHERE o.market = $1 AND EXTRACT(YEAR FROM o.order_date) = $2
GROUP BY s.shipping_mode
ORDER BY avg_predicted_late_risk DESC`

// Predict returns one row per shipping mode with the average predicted
// late-delivery risk in [0,1] for the market and year. An empty result
// means no estimate could be derived; the caller reports that as a
// prediction failure.
func (e *Estimator) Predict(ctx context.Context, market string, year int) ([]types.PredictionRow, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, riskQuery, market, year)
	if err != nil {
		return nil, faults.Upstream("predictive", fmt.Errorf("risk query failed: %w", err))
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []types.PredictionRow
	for rows.Next() {
		var row types.PredictionRow
		if err := rows.Scan(&row.ShippingMode, &row.AvgPredictedLateRisk); err != nil {
			return nil, faults.Upstream("predictive", fmt.Errorf("failed to scan risk row: %w", err))
		}
		if row.AvgPredictedLateRisk < 0 {
			row.AvgPredictedLateRisk = 0
		} else if row.AvgPredictedLateRisk > 1 {
			row.AvgPredictedLateRisk = 1
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Upstream("predictive", err)
	}

	e.log.InfoWithDuration("", "", "risk prediction completed",
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"market": market, "year": year, "modes": len(out)})
	return out, nil
}
