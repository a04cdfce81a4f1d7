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

// Package orchestrator coordinates the sub-agents behind a single
// question-answering turn: intent classification, document retrieval,
// SQL execution, risk prediction, web search, learning content and
// explanation, plus the compliance and gamification state that spans
// turns.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chainsight/platform/orchestrator/classifier"
	"chainsight/platform/orchestrator/embedding"
	"chainsight/platform/orchestrator/explain"
	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/orchestrator/retrieval"
	"chainsight/platform/orchestrator/sqlagent"
	"chainsight/platform/orchestrator/websearch"
	"chainsight/platform/shared/logger"
	"chainsight/platform/shared/types"
)

const (
	defaultUserID = "default_user"
	defaultRole   = "supply_chain_manager"
	defaultRegion = "all"

	contextSimilarityThreshold = 0.8
)

// User-facing messages. The exact wording is part of the conversational
// contract with the frontend.
const (
	invalidQueryNumberMessage = "Invalid query number. Please check your conversation history."
	unrelatedQueryMessage     = "The question doesn't seem to require data retrieval or SQL querying. Please ask a supply chain-related question."
	noDocumentsMessage        = "I couldn't find any relevant documents for your query."
	tooComplexMessage         = "The query is too complex to translate into SQL."
)

// fallbackSuggestions are offered after an access violation.
var fallbackSuggestions = []string{
	"Try querying operational data like order counts or shipping details.",
	"Would you like to explore logistics policies instead?",
}

// IntentClassifier labels a question with the sub-agents it requires.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) (classifier.IntentFlags, error)
}

// DocumentRetriever finds and summarizes policy document chunks.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, topK int, filters map[string]string, minSimilarity float64, roleName string) ([]types.Chunk, error)
	Summarize(ctx context.Context, chunks []types.Chunk, query string) (string, error)
}

// SQLExecutor turns a question into SQL and runs it under the caller's
// role permissions.
type SQLExecutor interface {
	Execute(ctx context.Context, question string, simplify bool, roleName, region string) (*sqlagent.Result, error)
}

// RiskEstimator predicts late-delivery risk per shipping mode.
type RiskEstimator interface {
	Predict(ctx context.Context, market string, year int) ([]types.PredictionRow, error)
}

// LearningProvider generates educational content for a known topic.
type LearningProvider interface {
	Content(ctx context.Context, topic string) (string, error)
}

// Explainer merges turn results into a natural-language explanation.
type Explainer interface {
	ExplainResults(ctx context.Context, input explain.Input) string
}

// Deps wires the coordinator to its collaborators.
type Deps struct {
	Classifier IntentClassifier
	Retriever  DocumentRetriever
	SQL        SQLExecutor
	Predictor  RiskEstimator
	Search     websearch.Searcher
	Learning   LearningProvider
	Explainer  Explainer
	Embedder   embedding.Embedder
	Scoreboard Scoreboard

	// UserID identifies the session on the shared leaderboard.
	// Defaults to "default_user".
	UserID string
}

// Coordinator is the master agent. It serializes turns; concurrent
// HandleTurn calls queue on an internal mutex.
type Coordinator struct {
	deps        Deps
	suggestions *suggestionEngine
	log         *logger.Logger

	mu      sync.Mutex
	session *Session
}

// New creates a Coordinator with a fresh session.
func New(deps Deps) *Coordinator {
	if deps.UserID == "" {
		deps.UserID = defaultUserID
	}
	return &Coordinator{
		deps:        deps,
		suggestions: newSuggestionEngine(deps.Embedder),
		log:         logger.New("master-coordinator"),
		session:     NewSession(deps.UserID),
	}
}

// Session exposes the current session state, primarily for tests and
// the interactive shell.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// HandleTurn runs one full question-answering turn and returns the
// structured response. It never returns an error; failures are carried
// in the response's Errors and Status fields.
func (c *Coordinator) HandleTurn(ctx context.Context, req types.TurnRequest) *types.TurnResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	session := c.session

	role := req.UserRole
	if role == "" {
		role = defaultRole
	}
	region := req.UserRegion
	if region == "" {
		region = defaultRegion
	}

	response := types.NewTurnResponse(req.Question)
	response.ComplianceScore = session.ComplianceScore

	// "go back to query <n>" replays a past turn verbatim.
	if n, ok := parseGoBack(req.Question); ok {
		if entry, found := session.pastEntry(n); found {
			response.Summary = fmt.Sprintf("Revisiting query %d: %s\n%s", n, entry.Question, entry.Response)
		} else {
			response.Errors = append(response.Errors, invalidQueryNumberMessage)
			response.Summary = invalidQueryNumberMessage
			response.Status = types.StatusError
		}
		return c.finish(response, start)
	}

	originalQuestion := req.Question
	question := stripVoicePrefix(req.Question)
	question = c.inferContext(ctx, question)

	if message := validateQuestion(question, session); message != "" {
		response.Errors = append(response.Errors, message)
		response.Status = types.StatusError
		response.Suggestions = c.suggestions.alternatives(ctx, question)
		response.Summary = message + "\nSuggestions: " + strings.Join(response.Suggestions, ", ")
		response.ComplianceScore = session.ComplianceScore
		return c.finish(response, start)
	}

	flags, err := c.deps.Classifier.Classify(ctx, question)
	if err != nil {
		response.Errors = append(response.Errors, fmt.Sprintf("Intent classification failed: %v", err))
		response.Status = types.StatusError
		response.Summary = response.Errors[0]
		return c.finish(response, start)
	}
	c.log.Info("", "", "query intent classified", map[string]interface{}{
		"requires_retrieval":   flags.RequiresRetrieval,
		"requires_sql":         flags.RequiresSQL,
		"requires_predictive":  flags.RequiresPredictive,
		"requires_explanation": flags.RequiresExplanation,
	})

	var (
		sqlColumns     []string
		webKnowledge   string
		predictionMade bool
	)

	parts := classifier.SplitParts(question)
	if len(parts) > 1 && flags.RequiresSQL && flags.RequiresRetrieval {
		sqlColumns = c.runHybrid(ctx, response, parts, req, role, region)
	} else {
		if !flags.RequiresRetrieval && !flags.RequiresSQL {
			session.adjustScore(-2, "Unrelated query intent (-2 points)")
			response.Errors = append(response.Errors, unrelatedQueryMessage)
			response.Status = types.StatusError
			response.Suggestions = c.suggestions.alternatives(ctx, question)
			response.Summary = unrelatedQueryMessage + "\nSuggestions: " + strings.Join(response.Suggestions, ", ")
			response.ComplianceScore = session.ComplianceScore
			return c.finish(response, start)
		}
		sqlColumns, webKnowledge, predictionMade = c.runSingle(ctx, response, question, flags, req, role, region)
	}

	if len(response.SQLResults) > 0 {
		response.Charts = append(response.Charts, buildSQLCharts(response.SQLResults)...)
	}
	if len(response.PredictionResults) > 0 {
		response.Charts = append(response.Charts, buildPredictionChart(response.PredictionResults))
	}

	needsExplanation := flags.RequiresSQL && flags.RequiresExplanation &&
		(len(response.SQLResults) > 0 || len(response.PredictionResults) > 0)
	if needsExplanation || predictionMade {
		response.Explanation = c.deps.Explainer.ExplainResults(ctx, explain.Input{
			Question:           question,
			SQLQuery:           response.SQLQuery,
			SQLResults:         response.SQLResults,
			DocumentResults:    response.DocumentResults,
			PredictionResults:  response.PredictionResults,
			WebSearchKnowledge: webKnowledge,
		})
	}

	response.Summary = assembleSummary(response, sqlColumns)

	if len(response.Errors) > 0 {
		response.Status = types.StatusError
		if len(response.Suggestions) > 0 {
			response.Summary += "\nSuggestions: " + strings.Join(response.Suggestions, ", ")
		}
	}
	if response.AuditLog != "" {
		response.Summary += "\n" + response.AuditLog
	}

	if proactive := c.suggestions.proactive(ctx, role, question); len(proactive) > 0 {
		response.ProactiveSuggestions = proactive
		response.Summary += "\nProactive Suggestions: " + strings.Join(proactive, ", ")
	}

	if badge := awardBadge(session); badge != "" {
		response.Badges = append(response.Badges, badge)
		response.Summary += "\n" + badge
	}

	position, err := c.deps.Scoreboard.Update(ctx, session.UserID, session.ComplianceScore)
	if err != nil {
		c.log.Warn("", "", "leaderboard update failed", map[string]interface{}{"error": err.Error()})
	} else {
		response.LeaderboardPosition = position
		response.Summary += fmt.Sprintf("\nLeaderboard Position: %d", position)
	}

	response.ComplianceScore = session.ComplianceScore
	response.Summary += fmt.Sprintf("\nCompliance Score: %d", session.ComplianceScore)

	session.remember(originalQuestion, response.Summary)

	return c.finish(response, start)
}

// runHybrid handles "X and Y" questions that mix a SQL part with a
// document-retrieval part. Parts matching neither heuristic are
// dropped. Returns the SQL result column order for table rendering.
func (c *Coordinator) runHybrid(ctx context.Context, response *types.TurnResponse, parts []string, req types.TurnRequest, role, region string) []string {
	session := c.session
	var sqlColumns []string

	var sqlPart, retrievalPart string
	for _, part := range parts {
		lower := strings.ToLower(part)
		if sqlPart == "" && (strings.Contains(lower, "top") || strings.Contains(lower, "order value")) {
			sqlPart = part
		}
		if retrievalPart == "" && (strings.Contains(lower, "sustainability") || strings.Contains(lower, "policy")) {
			retrievalPart = part
		}
	}

	if sqlPart != "" {
		result, err := c.deps.SQL.Execute(ctx, sqlPart, req.Simplify, role, region)
		switch {
		case err == nil:
			response.SQLResults = result.Results
			sqlColumns = result.Columns
			response.SQLQuery = strings.ReplaceAll(result.SQLQuery, "\n", " ")
			appendAudit(response, fmt.Sprintf("Access attempt logged: User role '%s' executed SQL query successfully.", role))
			session.adjustScore(2, "Successful SQL query (+2 points)")
			session.SuccessfulQueries++
		case faults.IsAccessDenied(err):
			response.Errors = append(response.Errors, err.Error())
			appendAudit(response, "Access attempt logged: "+err.Error())
			session.adjustScore(-3, "SQL access violation (-3 points)")
			session.SuccessfulQueries = 0
		default:
			response.Errors = append(response.Errors, fmt.Sprintf("SQL execution failed: %v", err))
		}
	}

	if retrievalPart != "" {
		chunks, err := c.deps.Retriever.Retrieve(ctx, retrievalPart, req.TopK, req.Filters, retrieval.DefaultMinSimilarity, role)
		switch {
		case err == nil:
			response.DocumentResults = chunks
			if summary, sumErr := c.deps.Retriever.Summarize(ctx, chunks, retrievalPart); sumErr == nil {
				response.DocumentSummary = summary
			} else {
				response.Errors = append(response.Errors, fmt.Sprintf("Document summarization failed: %v", sumErr))
			}
			appendAudit(response, fmt.Sprintf("Access attempt logged: User role '%s' accessed documents successfully.", role))
			session.adjustScore(2, "Successful document access (+2 points)")
		case faults.IsAccessDenied(err):
			response.Errors = append(response.Errors, err.Error())
			appendAudit(response, "Access attempt logged: "+err.Error())
			session.adjustScore(-3, "Access violation (-3 points)")
			session.SuccessfulQueries = 0
		default:
			response.Errors = append(response.Errors, fmt.Sprintf("Document retrieval failed: %v", err))
		}
	}

	return sqlColumns
}

// runSingle handles single-intent questions: the independent tasks
// (retrieval, web search, learning content) fan out in parallel, then
// SQL runs sequentially because its outcome steers prediction and the
// simplified retry.
func (c *Coordinator) runSingle(ctx context.Context, response *types.TurnResponse, question string, flags classifier.IntentFlags, req types.TurnRequest, role, region string) (sqlColumns []string, webKnowledge string, predictionMade bool) {
	session := c.session

	learningTopic, hasLearningTopic := extractLearningTopic(question)

	var (
		wg sync.WaitGroup

		docChunks []types.Chunk
		docErr    error

		webResult string
		webErr    error

		learningText string
		learningErr  error
	)

	if flags.RequiresRetrieval {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docChunks, docErr = c.deps.Retriever.Retrieve(ctx, question, req.TopK, req.Filters, retrieval.DefaultMinSimilarity, role)
		}()
	}
	if flags.RequiresExplanation {
		wg.Add(1)
		go func() {
			defer wg.Done()
			webResult, webErr = c.deps.Search.Search(ctx, question+" supply chain context")
		}()
	}
	if hasLearningTopic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			learningText, learningErr = c.deps.Learning.Content(ctx, learningTopic)
		}()
	}
	wg.Wait()

	var (
		sqlResult *sqlagent.Result
		sqlErr    error
	)
	if flags.RequiresSQL {
		sqlResult, sqlErr = c.deps.SQL.Execute(ctx, question, req.Simplify, role, region)
	}

	if hasLearningTopic {
		if learningErr != nil {
			response.Errors = append(response.Errors, fmt.Sprintf("Learning content failed: %v", learningErr))
		} else {
			response.LearningContent = learningText
		}
	}

	if flags.RequiresExplanation {
		webKnowledge = webResult
		if webErr != nil {
			response.Errors = append(response.Errors, fmt.Sprintf("Web search failed: %v", webErr))
			if webKnowledge == "" {
				webKnowledge = websearch.DegradedMessage
			}
		}
	}

	if flags.RequiresRetrieval {
		switch {
		case docErr != nil && faults.IsAccessDenied(docErr):
			session.adjustScore(-3, "Access violation (-3 points)")
			session.SuccessfulQueries = 0
			response.Errors = append(response.Errors, docErr.Error())
			appendAudit(response, "Access attempt logged: "+docErr.Error())
			response.Suggestions = append([]string(nil), fallbackSuggestions...)
		case docErr != nil:
			response.Errors = append(response.Errors, fmt.Sprintf("Document retrieval failed: %v", docErr))
		case len(docChunks) > 0:
			response.DocumentResults = docChunks
			if summary, sumErr := c.deps.Retriever.Summarize(ctx, docChunks, question); sumErr == nil {
				response.DocumentSummary = summary
			} else {
				response.Errors = append(response.Errors, fmt.Sprintf("Document summarization failed: %v", sumErr))
			}
			appendAudit(response, fmt.Sprintf("Access attempt logged: User role '%s' accessed documents successfully.", role))
			session.adjustScore(2, "Successful document access (+2 points)")
		default:
			response.Errors = append(response.Errors, noDocumentsMessage)
		}
	}

	if flags.RequiresSQL {
		switch {
		case sqlErr == nil:
			response.SQLResults = sqlResult.Results
			sqlColumns = sqlResult.Columns
			response.SQLQuery = strings.ReplaceAll(sqlResult.SQLQuery, "\n", " ")
			appendAudit(response, fmt.Sprintf("Access attempt logged: User role '%s' executed SQL query successfully.", role))
			session.adjustScore(2, "Successful SQL query (+2 points)")
			session.SuccessfulQueries++

		case errors.Is(sqlErr, sqlagent.ErrTooComplex):
			response.Errors = append(response.Errors, tooComplexMessage+" Automatically simplifying the query...")
			if retry, retryErr := c.deps.SQL.Execute(ctx, question, true, role, region); retryErr == nil {
				response.SQLResults = retry.Results
				sqlColumns = retry.Columns
				response.SQLQuery = strings.ReplaceAll(retry.SQLQuery, "\n", " ")
			}

		case errors.Is(sqlErr, sqlagent.ErrNeedsPrediction):
			market, year, exErr := extractMarketYear(question)
			if exErr != nil {
				response.Errors = append(response.Errors, exErr.Error())
				break
			}
			predictions, predErr := c.deps.Predictor.Predict(ctx, market, year)
			if predErr != nil || len(predictions) == 0 {
				response.Errors = append(response.Errors,
					fmt.Sprintf("Failed to predict late delivery risk for %s in %d", market, year))
				break
			}
			response.PredictionResults = predictions
			predictionMade = true

		case faults.IsAccessDenied(sqlErr):
			session.adjustScore(-3, "SQL access violation (-3 points)")
			session.SuccessfulQueries = 0
			response.Errors = append(response.Errors, sqlErr.Error())
			appendAudit(response, "Access attempt logged: "+sqlErr.Error())
			response.Suggestions = append([]string(nil), fallbackSuggestions...)

		default:
			response.Errors = append(response.Errors, fmt.Sprintf("SQL execution failed: %v", sqlErr))
		}
	}

	return sqlColumns, webKnowledge, predictionMade
}

// inferContext rewrites a likely follow-up question with a topic prefix
// drawn from the most recent sufficiently similar past question.
// Embedding failures leave the question unchanged.
func (c *Coordinator) inferContext(ctx context.Context, question string) string {
	lower := strings.ToLower(question)
	if !hasFollowUpCue(lower) || len(c.session.History) == 0 {
		return question
	}

	questionVector, err := c.deps.Embedder.Embed(ctx, lower)
	if err != nil {
		return question
	}

	for i := len(c.session.History) - 1; i >= 0; i-- {
		past := strings.ToLower(c.session.History[i].Question)
		pastVector, err := c.deps.Embedder.Embed(ctx, past)
		if err != nil {
			continue
		}
		if embedding.Cosine(questionVector, pastVector) > contextSimilarityThreshold {
			if prefix, ok := topicHintPrefix(past); ok {
				return prefix + question
			}
		}
	}
	return question
}

// finish stamps latency and records turn metrics.
func (c *Coordinator) finish(response *types.TurnResponse, start time.Time) *types.TurnResponse {
	elapsed := time.Since(start)
	response.LatencyMS = float64(elapsed.Microseconds()) / 1000.0

	turnsTotal.WithLabelValues(response.Status).Inc()
	turnDuration.Observe(elapsed.Seconds())
	complianceScoreGauge.Set(float64(c.session.ComplianceScore))

	c.log.InfoWithDuration("", "", "turn completed", response.LatencyMS, map[string]interface{}{
		"status":           response.Status,
		"compliance_score": c.session.ComplianceScore,
	})
	return response
}

func appendAudit(response *types.TurnResponse, line string) {
	if response.AuditLog != "" {
		response.AuditLog += "\n"
	}
	response.AuditLog += line
}
