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
	"context"
	"fmt"
	"time"

	"chainsight/platform/shared/types"
)

// TimeoutSummary is the summary of a synthesized timeout response.
const TimeoutSummary = "Agent timeout occurred."

// TurnHandler is the coordinator surface the process boundaries consume.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req types.TurnRequest) *types.TurnResponse
}

// RunTurn executes one turn under a wall-clock budget. When the budget
// expires a timeout error response is synthesized; the in-flight turn
// is abandoned, not aborted.
func RunTurn(ctx context.Context, handler TurnHandler, req types.TurnRequest, budget time.Duration) *types.TurnResponse {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan *types.TurnResponse, 1)
	go func() {
		done <- handler.HandleTurn(ctx, req)
	}()

	select {
	case response := <-done:
		return response
	case <-ctx.Done():
		response := types.NewTurnResponse(req.Question)
		response.Status = types.StatusError
		response.Errors = append(response.Errors, fmt.Sprintf("turn timed out after %s", budget))
		response.Summary = TimeoutSummary
		response.LatencyMS = float64(budget.Microseconds()) / 1000.0
		return response
	}
}
