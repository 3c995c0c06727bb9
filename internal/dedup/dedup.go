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

// Package dedup guards processing submissions against replays using a Redis
// key with TTL. A client that retries a POST with the same Idempotency-Key
// must not invoke the oracle a second time.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a submission key is remembered.
	DefaultTTL = 10 * time.Minute

	// keyPrefix namespaces submission keys in Redis.
	keyPrefix = "postmeet:submission:"
)

// Store is the subset of the Redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Guard tracks which submissions are already in flight or done.
type Guard struct {
	rdb Store
	ttl time.Duration
}

// NewGuard creates a submission guard backed by Redis.
func NewGuard(rdb Store, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{rdb: rdb, ttl: ttl}
}

// Claim returns true if the submission has NOT been seen before for this
// caller. If true, it is marked as seen atomically (SETNX).
func (g *Guard) Claim(ctx context.Context, caller, key string) (bool, error) {
	set, err := g.rdb.SetNX(ctx, submissionKey(caller, key), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// Release forgets a submission so it can be retried, e.g. after the oracle
// failed.
func (g *Guard) Release(ctx context.Context, caller, key string) error {
	if err := g.rdb.Del(ctx, submissionKey(caller, key)).Err(); err != nil {
		return fmt.Errorf("dedup DEL: %w", err)
	}
	return nil
}

func submissionKey(caller, key string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, caller, key)
}
