// Copyright (c) 2026 John Earle
//
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

package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memStore struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newMemStore() *memStore { return &memStore{keys: map[string]time.Duration{}} }

func (m *memStore) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if _, ok := m.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.keys[k]; ok {
			delete(m.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestClaim(t *testing.T) {
	store := newMemStore()
	g := NewGuard(store, 0)
	ctx := context.Background()

	first, err := g.Claim(ctx, "lead@example.com", "k1")
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v; want true", first, err)
	}
	again, err := g.Claim(ctx, "lead@example.com", "k1")
	if err != nil || again {
		t.Errorf("repeat claim = %v, %v; want false", again, err)
	}
	other, _ := g.Claim(ctx, "other@example.com", "k1")
	if !other {
		t.Error("keys must be scoped per caller")
	}

	if ttl := store.keys["postmeet:submission:lead@example.com:k1"]; ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", ttl, DefaultTTL)
	}
}

func TestRelease(t *testing.T) {
	g := NewGuard(newMemStore(), time.Minute)
	ctx := context.Background()

	_, _ = g.Claim(ctx, "lead@example.com", "k1")
	if err := g.Release(ctx, "lead@example.com", "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ := g.Claim(ctx, "lead@example.com", "k1")
	if !ok {
		t.Error("claim after release should succeed")
	}
}

func TestClaim_RedisError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")

	if _, err := NewGuard(store, 0).Claim(context.Background(), "a", "b"); err == nil {
		t.Error("expected error")
	}
}
