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

package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local TTL cache tier. It never returns an error.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	maxSize int
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates an in-memory tier holding at most maxSize entries.
// When full, expired entries are dropped first; if none are expired an
// arbitrary entry is evicted.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		maxSize: maxSize,
	}
}

// Get returns the value for key if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key for ttl (DefaultTTL if <= 0).
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictLocked()
	}
	m.entries[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictLocked drops expired entries, or one arbitrary entry when nothing
// has expired yet. Callers must hold the mutex.
func (m *Memory) evictLocked() {
	now := time.Now()
	dropped := false
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			dropped = true
		}
	}
	if dropped {
		return
	}
	for key := range m.entries {
		delete(m.entries, key)
		return
	}
}
