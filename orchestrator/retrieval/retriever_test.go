// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsight/platform/orchestrator/faults"
	"chainsight/platform/shared/cache"
)

type staticEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (e *staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return e.vec, e.err
}

type staticLLM struct {
	text string
	err  error
}

func (l *staticLLM) Generate(context.Context, string, string) (string, error) {
	return l.text, l.err
}

func chunkColumns() []string {
	return []string{"doc_id", "chunk_id", "file_name", "chunk", "metadata", "distance"}
}

func TestRetrieve_UnknownRoleDenied(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db, &staticEmbedder{vec: []float32{0.1}}, &staticLLM{}, nil)
	_, err = r.Retrieve(context.Background(), "policy question", 5, nil, 0.2, "ceo")
	require.Error(t, err)
	assert.True(t, faults.IsAccessDenied(err))
}

func TestRetrieve_EmbeddingFailureIsPermanent(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	emb := &staticEmbedder{err: fmt.Errorf("model offline")}
	r := New(db, emb, &staticLLM{}, nil)

	_, err = r.Retrieve(context.Background(), "policy question", 5, nil, 0.2, "planning_manager")
	require.Error(t, err)
	assert.True(t, faults.IsUpstream(err))
	assert.Equal(t, 1, emb.calls, "embedding must not be retried")
}

func TestRetrieve_FiltersBySimilarity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(chunkColumns()).
		AddRow(1, 1, "logistics_policy.pdf", "keep this", "{}", 0.1).
		AddRow(1, 2, "logistics_policy.pdf", "too far", "{}", 0.95)
	mock.ExpectQuery("SELECT doc_id, chunk_id, file_name").WillReturnRows(rows)

	r := New(db, &staticEmbedder{vec: []float32{0.1, 0.2}}, &staticLLM{}, nil)
	chunks, err := r.Retrieve(context.Background(), "shipping policy", 5, nil, 0.2, "planning_manager")
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "keep this", chunks[0].Text)
	assert.InDelta(t, 0.9, chunks[0].Similarity, 1e-9)
}

func TestRetrieve_NameFilterFailsFast(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// First row passes, second row violates the finance filter. The whole
	// call must be denied, not partially filtered.
	rows := sqlmock.NewRows(chunkColumns()).
		AddRow(1, 1, "finance_summary.pdf", "ok", "{}", 0.1).
		AddRow(2, 1, "shipping_manual.pdf", "not yours", "{}", 0.2)
	mock.ExpectQuery("SELECT doc_id, chunk_id, file_name").WillReturnRows(rows)

	r := New(db, &staticEmbedder{vec: []float32{0.1}}, &staticLLM{}, nil)
	_, err = r.Retrieve(context.Background(), "profit policy", 5, nil, 0.2, "finance_manager")
	require.Error(t, err)
	assert.True(t, faults.IsAccessDenied(err))
	assert.Contains(t, err.Error(), "financial documents")
}

func TestRetrieve_LogisticsAllowsShippingFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(chunkColumns()).
		AddRow(3, 1, "shipping_modes.pdf", "modes", "{}", 0.3)
	mock.ExpectQuery("SELECT doc_id, chunk_id, file_name").WillReturnRows(rows)

	r := New(db, &staticEmbedder{vec: []float32{0.1}}, &staticLLM{}, nil)
	chunks, err := r.Retrieve(context.Background(), "shipping", 5, nil, 0.2, "logistics_specialist")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestRetrieve_ExactMatchFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(chunkColumns()).
		AddRow(7, 1, "sustainability.pdf", "green", "{}", 0.4)
	mock.ExpectQuery("WHERE doc_id = \\$2 AND file_name = \\$3").
		WithArgs(sqlmock.AnyArg(), "7", "sustainability.pdf", 5).
		WillReturnRows(rows)

	r := New(db, &staticEmbedder{vec: []float32{0.1}}, &staticLLM{}, nil)
	chunks, err := r.Retrieve(context.Background(), "sustainability", 5,
		map[string]string{"doc_id": "7", "file_name": "sustainability.pdf"}, 0.2, "planning_manager")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestRetrieve_CachedResultSkipsSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(chunkColumns()).
		AddRow(1, 1, "policy.pdf", "text", "{}", 0.2)
	mock.ExpectQuery("SELECT doc_id, chunk_id, file_name").WillReturnRows(rows)

	emb := &staticEmbedder{vec: []float32{0.1}}
	r := New(db, emb, &staticLLM{}, cache.NewMemory(10))
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "policy", 5, nil, 0.2, "planning_manager")
	require.NoError(t, err)

	// No second ExpectQuery is registered: a DB round trip here would
	// fail the test.
	second, err := r.Retrieve(ctx, "policy", 5, nil, 0.2, "planning_manager")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.calls)
}

func TestSummarize_EmptyChunks(t *testing.T) {
	r := New(nil, &staticEmbedder{}, &staticLLM{}, nil)
	summary, err := r.Summarize(context.Background(), nil, "anything")
	require.NoError(t, err)
	assert.Contains(t, summary, "No relevant documents")
}
