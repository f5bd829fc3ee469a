package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists sessions for a limited time.
type SessionStore interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps sessions as JSON under Prefix+id. Every save renews the TTL.
type RedisStore struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (r RedisStore) key(id string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "checkout:session:"
	}
	return prefix + id
}

func (r RedisStore) Get(ctx context.Context, id string) (Session, error) {
	data, err := r.R.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("checkout: load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("checkout: decode session: %w", err)
	}
	return s, nil
}

func (r RedisStore) Save(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("checkout: encode session: %w", err)
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return r.R.Set(ctx, r.key(s.ID), data, ttl).Err()
}

func (r RedisStore) Delete(ctx context.Context, id string) error {
	return r.R.Del(ctx, r.key(id)).Err()
}
