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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcem/postmeet/internal/models"
)

type memKV struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestStore_SaveLookup(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, "postmeet:session:")
	ctx := context.Background()

	sess := &models.Session{Email: "lead@example.com", Provider: models.ProviderGoogle, AccessToken: "ya29"}
	if err := store.Save(ctx, "t1", sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := kv.data["postmeet:session:t1"]; !ok {
		t.Fatal("session not stored under prefix")
	}

	got, err := store.Lookup(ctx, "t1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Email != sess.Email || got.Provider != sess.Provider || got.AccessToken != "ya29" {
		t.Errorf("session = %+v", got)
	}
}

func TestStore_LookupMissing(t *testing.T) {
	store := NewStore(newMemKV(), "p:")
	if _, err := store.Lookup(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := store.Lookup(context.Background(), ""); err != ErrNotFound {
		t.Errorf("empty token error = %v, want ErrNotFound", err)
	}
}

func TestStore_SaveUsesExpiry(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, "p:")

	sess := &models.Session{Email: "a@example.com", Expiry: time.Now().Add(30 * time.Minute)}
	if err := store.Save(context.Background(), "t", sess, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := kv.ttls["p:t"]; ttl <= 0 || ttl > 30*time.Minute {
		t.Errorf("ttl = %v, want (0, 30m]", ttl)
	}

	expired := &models.Session{Email: "a@example.com", Expiry: time.Now().Add(-time.Minute)}
	if err := store.Save(context.Background(), "t2", expired, 0); err == nil {
		t.Error("expected error for expired session")
	}
}
