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

// Package types defines the request/response contracts shared between the
// orchestrator core, the process-invocation boundary and the HTTP gateway.
package types

// TurnRequest is a single question submitted to the orchestrator.
type TurnRequest struct {
	Question   string            `json:"question"`
	TopK       int               `json:"top_k,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
	Simplify   bool              `json:"simplify,omitempty"`
	UserRole   string            `json:"user_role"`
	UserRegion string            `json:"user_region"`
}

// TurnResponse is the structured result of one orchestrator turn.
// Status is "error" whenever any blocking validation, access denial or
// unrecoverable failure occurred; otherwise "success".
type TurnResponse struct {
	Status              string                   `json:"status"`
	Question            string                   `json:"question"`
	DocumentResults     []Chunk                  `json:"document_results"`
	DocumentSummary     string                   `json:"document_summary"`
	SQLResults          []map[string]interface{} `json:"sql_results"`
	SQLQuery            string                   `json:"sql_query"`
	PredictionResults   []PredictionRow          `json:"prediction_results"`
	Explanation         string                   `json:"explanation"`
	LearningContent     string                   `json:"learning_content"`
	Summary             string                   `json:"summary"`
	Charts              []ChartSpec              `json:"charts"`
	Errors              []string                 `json:"errors"`
	LatencyMS           float64                  `json:"latency_ms"`
	Suggestions         []string                 `json:"suggestions"`
	AuditLog            string                   `json:"audit_log"`
	ComplianceScore     int                      `json:"compliance_score"`
	ProactiveSuggestions []string                `json:"proactive_suggestions"`
	Badges              []string                 `json:"badges"`
	LeaderboardPosition int                      `json:"leaderboard_position"`
}

// StatusSuccess and StatusError are the only valid TurnResponse statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NewTurnResponse returns a response initialized with empty collections so
// the JSON encoding always carries every field.
func NewTurnResponse(question string) *TurnResponse {
	return &TurnResponse{
		Status:               StatusSuccess,
		Question:             question,
		DocumentResults:      []Chunk{},
		SQLResults:           []map[string]interface{}{},
		PredictionResults:    []PredictionRow{},
		Charts:               []ChartSpec{},
		Errors:               []string{},
		Suggestions:          []string{},
		ProactiveSuggestions: []string{},
		Badges:               []string{},
	}
}

// Chunk is a scored document fragment returned by the retrieval agent.
// Chunks are read-only; they are sourced from the vector store and never
// mutated by the core.
type Chunk struct {
	DocID      int     `json:"doc_id"`
	ChunkID    int     `json:"chunk_id"`
	FileName   string  `json:"file_name"`
	Text       string  `json:"chunk"`
	Metadata   string  `json:"metadata"`
	Similarity float64 `json:"similarity"`
}

// PredictionRow is one shipping mode's predicted late-delivery risk.
type PredictionRow struct {
	ShippingMode         string  `json:"shipping_mode"`
	AvgPredictedLateRisk float64 `json:"avg_predicted_late_risk"`
}

// ChartSpec is a renderer-agnostic chart description. Data and Options
// follow the Chart.js configuration shape the frontend consumes.
type ChartSpec struct {
	Type    string                 `json:"type"`
	Data    ChartData              `json:"data"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ChartData holds the labels and datasets for a chart.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is a single series within a chart.
type ChartDataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     []string  `json:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
}

// Title returns the chart title from the options tree, or "" when unset.
func (c ChartSpec) Title() string {
	plugins, ok := c.Options["plugins"].(map[string]interface{})
	if !ok {
		return ""
	}
	title, ok := plugins["title"].(map[string]interface{})
	if !ok {
		return ""
	}
	text, _ := title["text"].(string)
	return text
}
