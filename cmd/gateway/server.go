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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"chainsight/platform/config"
	"chainsight/platform/orchestrator"
	"chainsight/platform/shared/logger"
	"chainsight/platform/shared/types"
)

// server is the HTTP front door. Authentication is optional: a valid
// bearer token carries the caller's role and region, anonymous requests
// fall back to the configured defaults.
type server struct {
	turns  orchestrator.TurnHandler
	cfg    config.Config
	budget time.Duration
	log    *logger.Logger
}

func newServer(turns orchestrator.TurnHandler, cfg config.Config) *server {
	return &server{
		turns:  turns,
		cfg:    cfg,
		budget: time.Duration(cfg.TurnTimeoutSeconds) * time.Second,
		log:    logger.New("gateway"),
	}
}

func (s *server) handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/query", s.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(router)
}

type queryRequest struct {
	Query      string            `json:"query"`
	TopK       int               `json:"top_k"`
	Filters    map[string]string `json:"filters"`
	Simplify   bool              `json:"simplify"`
	UserRole   string            `json:"user_role"`
	UserRegion string            `json:"user_region"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	role, region, err := s.identity(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": err.Error()})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Query is required"})
		return
	}
	if req.UserRole != "" {
		role = req.UserRole
	}
	if req.UserRegion != "" {
		region = req.UserRegion
	}

	response := orchestrator.RunTurn(r.Context(), s.turns, types.TurnRequest{
		Question:   req.Query,
		TopK:       req.TopK,
		Filters:    req.Filters,
		Simplify:   req.Simplify,
		UserRole:   role,
		UserRegion: region,
	}, s.budget)

	s.log.InfoWithDuration("", requestID, "query handled",
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"status": response.Status, "role": role})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":               response.Summary,
		"accessDenied":         accessDenied(response),
		"documentUrl":          nil,
		"charts":               response.Charts,
		"predictionResults":    response.PredictionResults,
		"proactiveSuggestions": response.ProactiveSuggestions,
		"leaderboardPosition":  response.LeaderboardPosition,
		"complianceScore":      response.ComplianceScore,
		"accessAttemptLogged":  response.AuditLog,
		"debug": map[string]interface{}{
			"role":      role,
			"region":    region,
			"requestId": requestID,
		},
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// identity resolves the caller's role and region. A missing token falls
// back to the configured defaults; a present but invalid token is
// rejected.
func (s *server) identity(r *http.Request) (role, region string, err error) {
	role = s.cfg.DefaultRole
	region = s.cfg.DefaultRegion

	header := r.Header.Get("Authorization")
	if header == "" {
		return role, region, nil
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return "", "", fmt.Errorf("authorization header must use the Bearer scheme")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	if claimed, ok := claims["role"].(string); ok && claimed != "" {
		role = claimed
	}
	if claimed, ok := claims["region"].(string); ok && claimed != "" {
		region = claimed
	}
	return role, region, nil
}

// accessDenied reports whether any turn error was a permission denial.
func accessDenied(response *types.TurnResponse) bool {
	for _, message := range response.Errors {
		if strings.HasPrefix(message, "Access restricted") || strings.HasPrefix(message, "Access denied") {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
