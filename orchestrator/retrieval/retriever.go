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

// Package retrieval implements access-controlled semantic document
// retrieval over the pgvector store. Role permissions are resolved
// before any query runs; a single chunk outside the role's document
// scope denies the whole call rather than filtering that chunk.
package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"chainsight/platform/orchestrator/embedding"
	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/orchestrator/llm"
	"chainsight/platform/orchestrator/policy"
	"chainsight/platform/shared/cache"
	"chainsight/platform/shared/logger"
	"chainsight/platform/shared/types"
)

const (
	// DefaultTopK bounds the result set when the caller passes 0.
	DefaultTopK = 5

	// DefaultMinSimilarity is the floor applied when the caller passes 0.
	DefaultMinSimilarity = 0.2

	cacheTTL = 2 * time.Hour
)

// nameFilters is the secondary, role-name-based document filter. It is
// applied on top of the permission union: the first retrieved chunk whose
// file name matches none of the role's substrings denies the whole call.
var nameFilters = []struct {
	roleSubstring string
	fileContains  []string
	denial        string
}{
	{"finance", []string{"finance"}, "Access restricted: Finance manager can only access financial documents."},
	{"logistics", []string{"logistics", "shipping"}, "Access restricted: Logistics specialist can only access logistics documents."},
	{"supplier", []string{"supplier"}, "Access restricted: Supplier manager can only access supplier-related documents."},
}

// Retriever performs embedding, nearest-neighbour search and access
// filtering for document chunks.
type Retriever struct {
	db       *sql.DB
	embedder embedding.Embedder
	llm      llm.Generator
	cache    cache.Store
	log      *logger.Logger
}

// New creates a Retriever. store may be nil to disable result caching.
func New(db *sql.DB, embedder embedding.Embedder, generator llm.Generator, store cache.Store) *Retriever {
	return &Retriever{
		db:       db,
		embedder: embedder,
		llm:      generator,
		cache:    store,
		log:      logger.New("retrieval"),
	}
}

// Retrieve embeds query, ranks stored chunks by similarity and applies
// both permission layers for roleName. Results are capped at topK after
// filtering by similarity >= minSimilarity and the exact-match filters
// (doc_id, file_name).
func (r *Retriever) Retrieve(
	ctx context.Context,
	query string,
	topK int,
	filters map[string]string,
	minSimilarity float64,
	roleName string,
) ([]types.Chunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	perms, err := policy.EffectiveForName(roleName)
	if err != nil {
		return nil, faults.AccessDenied("Access restricted: Invalid user role.")
	}

	key := cacheKey(query, filters)
	if r.cache != nil {
		if cached, ok, cerr := r.cache.Get(ctx, key); cerr == nil && ok {
			var chunks []types.Chunk
			if jerr := json.Unmarshal([]byte(cached), &chunks); jerr == nil {
				r.log.Info("", "", "retrieval cache hit", nil)
				return chunks, nil
			}
		}
	}

	start := time.Now()
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		// Embedding failures are permanent for this call; no retry.
		return nil, faults.Upstream("retrieval", fmt.Errorf("failed to embed query: %w", err))
	}

	rows, err := r.search(ctx, vector, topK, filters)
	if err != nil {
		return nil, faults.Upstream("retrieval", err)
	}

	chunks := make([]types.Chunk, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < minSimilarity {
			continue
		}
		if denial := deniedByName(roleName, row.FileName, perms.Description); denial != nil {
			return nil, denial
		}
		chunks = append(chunks, row)
	}

	r.log.InfoWithDuration("", "", "document retrieval completed",
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{"results": len(chunks)})

	if r.cache != nil {
		if encoded, jerr := json.Marshal(chunks); jerr == nil {
			if cerr := r.cache.Set(ctx, key, string(encoded), cacheTTL); cerr != nil {
				r.log.Warn("", "", "failed to cache retrieval results", map[string]interface{}{"error": cerr.Error()})
			}
		}
	}
	return chunks, nil
}

// search runs the nearest-neighbour query. pgvector's <=> operator
// returns cosine distance; similarity = 1 - distance.
func (r *Retriever) search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]types.Chunk, error) {
	query := `SELECT doc_id, chunk_id, file_name, chunk, metadata,
		(embedding <=> CAST($1 AS vector)) AS distance
	FROM document_embeddings_384`

	args := []interface{}{vectorLiteral(vector)}
	var conditions []string
	if docID, ok := filters["doc_id"]; ok {
		args = append(args, docID)
		conditions = append(conditions, fmt.Sprintf("doc_id = $%d", len(args)))
	}
	if fileName, ok := filters["file_name"]; ok {
		args = append(args, fileName)
		conditions = append(conditions, fmt.Sprintf("file_name = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY embedding <=> CAST($1 AS vector) LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var distance float64
		var metadata sql.NullString
		if err := rows.Scan(&chunk.DocID, &chunk.ChunkID, &chunk.FileName, &chunk.Text, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Metadata = metadata.String
		chunk.Similarity = 1 - distance
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return out, nil
}

// Summarize asks the LLM gateway for a natural-language summary of the
// retrieved chunks relevant to query.
func (r *Retriever) Summarize(ctx context.Context, chunks []types.Chunk, query string) (string, error) {
	if len(chunks) == 0 {
		return "No relevant documents found to summarize. Would you like to explore related topics?", nil
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&sb, "From %s: %s\n", chunk.FileName, chunk.Text)
	}

	prompt := fmt.Sprintf(`Given the following document chunks, summarize the information relevant to the query: %q.
Provide a concise natural language answer, citing the source documents where applicable.
If the documents do not directly answer the query, state that clearly and suggest related information.

Document Chunks:
%s
Summary:
`, query, sb.String())

	summary, err := r.llm.Generate(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("failed to summarize documents: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// deniedByName applies the role-name substring filter. A nil result
// means the chunk passes.
func deniedByName(roleName, fileName, roleDescription string) error {
	roleLower := strings.ToLower(roleName)
	fileLower := strings.ToLower(fileName)

	for _, rule := range nameFilters {
		if !strings.Contains(roleLower, rule.roleSubstring) {
			continue
		}
		for _, allowed := range rule.fileContains {
			if strings.Contains(fileLower, allowed) {
				return nil
			}
		}
		return faults.AccessDenied("%s Role description: %s", rule.denial, roleDescription)
	}
	return nil
}

func vectorLiteral(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func cacheKey(query string, filters map[string]string) string {
	if len(filters) == 0 {
		return "retrieval:" + query
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s;", k, filters[k])
	}
	return "retrieval:" + query + "|" + sb.String()
}
