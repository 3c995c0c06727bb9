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

// Package session resolves caller sessions written to Redis by the auth
// collaborator, or by "postmeet session create" on hosts without one. Tokens
// are opaque; each maps to one JSON models.Session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcem/postmeet/internal/models"
)

// ErrNotFound is returned for unknown or expired session tokens.
var ErrNotFound = errors.New("session not found")

// KV is the subset of the Redis client the store needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Store reads and writes sessions under prefix+token.
type Store struct {
	rdb    KV
	prefix string
}

// NewStore creates a session store.
func NewStore(rdb KV, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Lookup returns the session for token.
func (s *Store) Lookup(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	data, err := s.rdb.Get(ctx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Save stores sess under token. A zero ttl keeps it until the token's
// expiry, or forever when the session has none.
func (s *Store) Save(ctx context.Context, token string, sess *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if ttl == 0 && !sess.Expiry.IsZero() {
		ttl = time.Until(sess.Expiry)
		if ttl <= 0 {
			return fmt.Errorf("session for %s has already expired", sess.Email)
		}
	}

	if err := s.rdb.Set(ctx, s.prefix+token, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET session: %w", err)
	}
	return nil
}
