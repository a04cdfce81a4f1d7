// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry should be a miss")
}

func TestMemory_EvictsWhenFull(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, m.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, m.Set(ctx, "c", "3", time.Minute))

	if m.Len() > 2 {
		t.Errorf("Len() = %d, want <= 2", m.Len())
	}
}

func TestRedis_SetGet(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedis(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayered_PromotesRemoteHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := NewMemory(10)
	layered := NewLayered(local, NewRedis(client))
	ctx := context.Background()

	// Seed only the remote tier.
	mr.Set("k", "v")

	val, ok, err := layered.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", val)

	// The hit must now be served locally even if redis goes away.
	mr.Close()
	val, ok, _ = local.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)
}

func TestLayered_WriteThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	local := NewMemory(10)
	layered := NewLayered(local, NewRedis(client))
	ctx := context.Background()

	require.NoError(t, layered.Set(ctx, "k", "v", time.Minute))

	_, ok, _ := local.Get(ctx, "k")
	assert.True(t, ok, "local tier should hold the write")
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
