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

// Package sqlagent executes natural-language questions against the
// warehouse through an opaque NL-to-SQL generator, enforcing role and
// region policy over the generated statement before it runs.
package sqlagent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/orchestrator/policy"
	"chainsight/platform/shared/logger"
)

// Signals a Generator may return instead of SQL text. The coordinator
// reacts to each: ErrTooComplex triggers exactly one simplified retry,
// ErrNeedsPrediction reroutes to the predictive estimator.
var (
	ErrTooComplex      = errors.New("query too complex")
	ErrNeedsPrediction = errors.New("query requires prediction")
)

// Generator is the opaque NL-to-SQL collaborator. When simplify is set
// the generator is asked for a simpler statement.
type Generator interface {
	GenerateSQL(ctx context.Context, question string, simplify bool) (string, error)
}

// Result carries the rows and the statement that produced them. Columns
// preserves the result-set column order for table rendering.
type Result struct {
	Results  []map[string]interface{}
	Columns  []string
	SQLQuery string
}

// Executor runs policy-checked generated SQL.
type Executor struct {
	db        *sql.DB
	generator Generator
	log       *logger.Logger
}

// New creates an Executor.
func New(db *sql.DB, generator Generator) *Executor {
	return &Executor{
		db:        db,
		generator: generator,
		log:       logger.New("sql-agent"),
	}
}

// knownTables is the closed set of warehouse tables policy applies to.
var knownTables = map[string]bool{
	"customers":   true,
	"products":    true,
	"orders":      true,
	"order_items": true,
	"shipping":    true,
}

var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-z_][a-z0-9_]*)`)

// Execute generates SQL for question, validates it against the role's
// effective permissions and the session region, then runs it. Generator
// signals (ErrTooComplex, ErrNeedsPrediction) pass through untouched.
func (e *Executor) Execute(ctx context.Context, question string, simplify bool, roleName, region string) (*Result, error) {
	perms, err := policy.EffectiveForName(roleName)
	if err != nil {
		return nil, faults.AccessDenied("Access restricted: Invalid user role.")
	}
	if region != "" && !perms.CanAccessRegion(region) {
		return nil, faults.AccessDenied(
			"Access restricted: role %q cannot query region %q. Role description: %s",
			roleName, region, perms.Description)
	}

	statement, err := e.generator.GenerateSQL(ctx, question, simplify)
	if err != nil {
		if errors.Is(err, ErrTooComplex) || errors.Is(err, ErrNeedsPrediction) {
			return nil, err
		}
		return nil, faults.Upstream("sql-generator", err)
	}

	if err := checkStatement(statement, perms, roleName); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, faults.Upstream("sql-execution", fmt.Errorf("query failed: %w", err))
	}
	defer func() {
		_ = rows.Close()
	}()

	results, columns, err := scanRows(rows)
	if err != nil {
		return nil, faults.Upstream("sql-execution", err)
	}

	e.log.InfoWithDuration("", "", "SQL query executed",
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"rows": len(results)})

	return &Result{Results: results, Columns: columns, SQLQuery: statement}, nil
}

// checkStatement enforces the read-only contract and the role's table
// permissions over the generated statement.
func checkStatement(statement string, perms policy.Permissions, roleName string) error {
	trimmed := strings.TrimSpace(statement)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return faults.AccessDenied("Access restricted: only read queries are permitted.")
	}

	for _, match := range tableRefPattern.FindAllStringSubmatch(trimmed, -1) {
		table := strings.ToLower(match[1])
		if !knownTables[table] {
			continue
		}
		if !perms.CanAccessTable(table) {
			return faults.AccessDenied(
				"Access restricted: role %q is not permitted to query table %q. Role description: %s",
				roleName, table, perms.Description)
		}
	}
	return nil
}

// scanRows converts a result set into ordered column/value maps. Byte
// slices that parse as numbers become float64 so downstream chart and
// table formatting can treat warehouse numerics uniformly.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, []string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, columns, nil
}

func normalizeValue(value interface{}) interface{} {
	raw, ok := value.([]byte)
	if !ok {
		return value
	}
	text := string(raw)
	if parsed, err := strconv.ParseFloat(text, 64); err == nil {
		return parsed
	}
	return text
}
