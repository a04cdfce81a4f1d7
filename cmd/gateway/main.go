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

// Package main is the HTTP gateway for the supply-chain query
// orchestrator.
//
// Routes:
//
//	POST /api/query   run one question-answering turn
//	GET  /api/health  liveness check
//	GET  /metrics     prometheus metrics
//
// Environment Variables:
//
//	PORT           HTTP server port (default: 8080)
//	DATABASE_URL   PostgreSQL connection string
//	REDIS_ADDR     Redis address
//	JWT_SECRET     HMAC secret for bearer-token validation
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"chainsight/platform/config"
	"chainsight/platform/orchestrator"
	"chainsight/platform/shared/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := logger.New("gateway")

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

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      newServer(coordinator, cfg).handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.TurnTimeoutSeconds+5) * time.Second,
	}

	log.Info("", "", "gateway listening", map[string]interface{}{"port": cfg.HTTPPort})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("", "", "server failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
