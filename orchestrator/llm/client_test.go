// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsight/platform/shared/cache"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func okBody(text string) string {
	return fmt.Sprintf(`{"response":{"content":[{"text":%q}]}}`, text)
}

func newClient(endpoint string, store cache.Store) *Client {
	c := NewClient(endpoint, "test-key", store)
	c.sleep = func(time.Duration) {}
	return c
}

func TestGenerate_Success(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okBody("  answer text \n"))
	})

	client := newClient(srv.URL, nil)
	got, err := client.Generate(context.Background(), "question", "")
	require.NoError(t, err)
	assert.Equal(t, "answer text", got, "response must be trimmed")
}

func TestGenerate_CacheSkipsSecondCall(t *testing.T) {
	var calls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, okBody("cached answer"))
	})

	client := newClient(srv.URL, cache.NewMemory(10))
	ctx := context.Background()

	first, err := client.Generate(ctx, "question", DefaultModel)
	require.NoError(t, err)
	second, err := client.Generate(ctx, "question", DefaultModel)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "second call must be served from cache")
}

func TestGenerate_RetriesOn429(t *testing.T) {
	var calls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, okBody("eventually"))
	})

	client := newClient(srv.URL, nil)
	got, err := client.Generate(context.Background(), "question", "")
	require.NoError(t, err)
	assert.Equal(t, "eventually", got)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestGenerate_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := newClient(srv.URL, nil)
	_, err := client.Generate(context.Background(), "question", "")
	require.Error(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestGenerate_NoRetryOn401(t *testing.T) {
	var calls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newClient(srv.URL, nil)
	_, err := client.Generate(context.Background(), "question", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "401 must not be retried")
}

func TestGenerate_NoRetryOn400(t *testing.T) {
	var calls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "prompt too long")
	})

	client := newClient(srv.URL, nil)
	_, err := client.Generate(context.Background(), "question", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt too long")
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestGenerate_EmptyTextFails(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okBody("   "))
	})

	client := newClient(srv.URL, nil)
	_, err := client.Generate(context.Background(), "question", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGenerate_MalformedJSONFails(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	})

	client := newClient(srv.URL, nil)
	_, err := client.Generate(context.Background(), "question", "")
	require.Error(t, err)
}
