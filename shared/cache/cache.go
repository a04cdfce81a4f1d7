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

// Package cache provides the TTL cache tiers used by the orchestrator
// agents: a process-local in-memory tier and a Redis-backed distributed
// tier, plus a layered combination of both. Entries expire purely by age;
// there is no explicit invalidation API. Writes are idempotent overwrites
// keyed by content hash, so tiers are shared across turns without
// exclusive locking beyond the map mutex.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultTTL is the multi-hour expiry applied when callers pass ttl <= 0.
const DefaultTTL = 2 * time.Hour

// Store is a TTL key/value cache tier.
type Store interface {
	// Get returns the cached value and whether it was present. A tier
	// failure is reported as an error and must be treated as a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key for the given TTL (DefaultTTL if <= 0).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Redis is a Store backed by a shared Redis instance.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client as a cache tier.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get retrieves a value from Redis.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a value in Redis with the given TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Layered reads from the local tier first, then the distributed tier,
// promoting distributed hits into the local tier. Writes go through both.
type Layered struct {
	local   Store
	remote  Store
}

// NewLayered combines a local and a remote tier. Either may be nil, in
// which case the other tier serves alone.
func NewLayered(local, remote Store) *Layered {
	return &Layered{local: local, remote: remote}
}

// Get consults local then remote. Remote failures degrade to a miss.
func (l *Layered) Get(ctx context.Context, key string) (string, bool, error) {
	if l.local != nil {
		if val, ok, err := l.local.Get(ctx, key); err == nil && ok {
			return val, true, nil
		}
	}
	if l.remote != nil {
		val, ok, err := l.remote.Get(ctx, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			if l.local != nil {
				_ = l.local.Set(ctx, key, val, 0)
			}
			return val, true, nil
		}
	}
	return "", false, nil
}

// Set writes through both tiers. The first tier error is returned but the
// other tier is still attempted.
func (l *Layered) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var firstErr error
	if l.local != nil {
		if err := l.local.Set(ctx, key, value, ttl); err != nil {
			firstErr = err
		}
	}
	if l.remote != nil {
		if err := l.remote.Set(ctx, key, value, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
