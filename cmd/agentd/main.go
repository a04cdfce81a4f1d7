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

// Package main is the agentd process boundary for the supply-chain
// query orchestrator.
//
// Two modes:
//
//	agentd              interactive shell for one user session
//	agentd -api-mode    line-delimited JSON turns on stdin/stdout
//
// In api mode every input line is one JSON turn request; every output
// line is one JSON turn response. A turn that exceeds the configured
// wall-clock budget produces a synthesized timeout response.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"chainsight/platform/config"
	"chainsight/platform/orchestrator"
	"chainsight/platform/shared/logger"
	"chainsight/platform/shared/types"
)

const helpText = `
Welcome to the Supply Chain Chatbot Help Menu!
Example Queries:
- What is the total number of orders per customer segment?
- What are load optimization strategies in our logistics policy?
- Predict the late delivery risk for LATAM in 2019.
Commands:
- Type 'exit' to quit.
- Type 'voice:' before your query to simulate voice input.
- Type 'help' to see this menu again.
- Type 'go back to query <number>' to revisit a past query (e.g., 'go back to query 1').
`

// turnInput is the wire shape accepted on stdin. "query" is accepted as
// an alias for "question" for compatibility with the HTTP gateway's
// invocation contract.
type turnInput struct {
	Question   string            `json:"question"`
	Query      string            `json:"query"`
	TopK       int               `json:"top_k"`
	Filters    map[string]string `json:"filters"`
	Simplify   bool              `json:"simplify"`
	UserRole   string            `json:"user_role"`
	UserRegion string            `json:"user_region"`
}

func (in turnInput) request(cfg config.Config) types.TurnRequest {
	question := in.Question
	if question == "" {
		question = in.Query
	}
	role := in.UserRole
	if role == "" {
		role = cfg.DefaultRole
	}
	region := in.UserRegion
	if region == "" {
		region = cfg.DefaultRegion
	}
	return types.TurnRequest{
		Question:   question,
		TopK:       in.TopK,
		Filters:    in.Filters,
		Simplify:   in.Simplify,
		UserRole:   role,
		UserRegion: region,
	}
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	apiMode := flag.Bool("api-mode", false, "read JSON turn requests from stdin, write JSON responses to stdout")
	flag.Parse()

	log := logger.New("agentd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("", "", "failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	coordinator, cleanup, err := orchestrator.Bootstrap(cfg)
	if err != nil {
		log.Error("", "", "failed to bootstrap orchestrator", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer func() {
		_ = cleanup()
	}()

	budget := time.Duration(cfg.TurnTimeoutSeconds) * time.Second
	if *apiMode {
		runAPIMode(coordinator, cfg, budget, log)
		return
	}
	runInteractive(coordinator, cfg, budget)
}

func runAPIMode(coordinator *orchestrator.Coordinator, cfg config.Config, budget time.Duration, log *logger.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		requestID := uuid.NewString()

		var input turnInput
		if err := json.Unmarshal(line, &input); err != nil {
			response := types.NewTurnResponse("")
			response.Status = types.StatusError
			response.Errors = append(response.Errors, fmt.Sprintf("invalid request: %v", err))
			response.Summary = "Invalid request payload."
			_ = encoder.Encode(response)
			continue
		}

		log.Info("", requestID, "turn received", nil)
		response := orchestrator.RunTurn(context.Background(), coordinator, input.request(cfg), budget)
		if err := encoder.Encode(response); err != nil {
			log.Error("", requestID, "failed to write response", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("", "", "stdin read failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func runInteractive(coordinator *orchestrator.Coordinator, cfg config.Config, budget time.Duration) {
	fmt.Print(helpText)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\nEnter your supply chain query (or 'exit' to quit): ")
		if !scanner.Scan() {
			return
		}
		question := scanner.Text()
		switch question {
		case "":
			continue
		case "exit":
			return
		case "help":
			fmt.Print(helpText)
			continue
		}

		response := orchestrator.RunTurn(context.Background(), coordinator,
			turnInput{Question: question}.request(cfg), budget)

		fmt.Printf("\nResponse (Latency: %.2f ms):\n", response.LatencyMS)
		fmt.Println(response.Summary)
		if len(response.Charts) > 0 {
			fmt.Println("\nVisualizations:")
			for range response.Charts {
				fmt.Println("Chart generated (view in UI).")
			}
		}
	}
}
