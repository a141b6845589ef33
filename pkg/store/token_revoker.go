package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevoker tracks revoked tokens until expiry.
type TokenRevoker interface {
	Revoke(token string, ttl time.Duration) error
	IsRevoked(token string) (bool, error)
}

// MemoryTokenRevoker keeps revoked tokens in-memory (single instance only).
type MemoryTokenRevoker struct {
	mu          sync.Mutex
	tokens      map[string]time.Time
	userCutoffs map[string]time.Time
}

// NewMemoryTokenRevoker builds an in-memory revoker.
func NewMemoryTokenRevoker() *MemoryTokenRevoker {
	return &MemoryTokenRevoker{
		tokens:      make(map[string]time.Time),
		userCutoffs: make(map[string]time.Time),
	}
}

// Revoke marks a token as revoked until its expiry.
func (r *MemoryTokenRevoker) Revoke(token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	r.tokens[token] = time.Now().Add(ttl)
	r.mu.Unlock()
	return nil
}

// IsRevoked checks if the token is revoked.
func (r *MemoryTokenRevoker) IsRevoked(token string) (bool, error) {
	r.mu.Lock()
	expiry, ok := r.tokens[token]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(r.tokens, token)
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()
	return true, nil
}

// RedisTokenRevoker stores revoked tokens in Redis with TTL.
type RedisTokenRevoker struct {
	client *redis.Client
}

// NewRedisTokenRevoker builds a Redis-backed revoker.
func NewRedisTokenRevoker(addr, password string) *RedisTokenRevoker {
	return &RedisTokenRevoker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Revoke marks a token as revoked until expiry.
func (r *RedisTokenRevoker) Revoke(token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return r.client.Set(ctx, revocationKey(token), "1", ttl).Err()
}

// IsRevoked checks if the token is revoked.
func (r *RedisTokenRevoker) IsRevoked(token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := r.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

func revocationKey(jti string) string {
	return "kreatorboard:auth:revoked:jti:" + jti
}

// UserTokenRevoker tracks a per-user revocation cutoff so all tokens
// issued before the cutoff are rejected.
type UserTokenRevoker interface {
	RevokeUser(userID string, since time.Time) error
	RevokedAfter(userID string) (time.Time, error)
}

// RevokeUser records a revocation cutoff for the user. The cutoff only
// moves forward.
func (r *MemoryTokenRevoker) RevokeUser(userID string, since time.Time) error {
	r.mu.Lock()
	if current, ok := r.userCutoffs[userID]; !ok || since.After(current) {
		r.userCutoffs[userID] = since
	}
	r.mu.Unlock()
	return nil
}

// RevokedAfter returns the revocation cutoff for the user, zero if none.
func (r *MemoryTokenRevoker) RevokedAfter(userID string) (time.Time, error) {
	r.mu.Lock()
	cutoff := r.userCutoffs[userID]
	r.mu.Unlock()
	return cutoff, nil
}

// RevokeUser records a revocation cutoff for the user in Redis.
func (r *RedisTokenRevoker) RevokeUser(userID string, since time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	key := userRevocationKey(userID)
	current, err := r.client.Get(ctx, key).Result()
	if err == nil {
		if existing, perr := time.Parse(time.RFC3339Nano, current); perr == nil && !since.After(existing) {
			return nil
		}
	} else if err != redis.Nil {
		return err
	}
	return r.client.Set(ctx, key, since.UTC().Format(time.RFC3339Nano), 0).Err()
}

// RevokedAfter returns the revocation cutoff for the user, zero if none.
func (r *RedisTokenRevoker) RevokedAfter(userID string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := r.client.Get(ctx, userRevocationKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, res)
}

func userRevocationKey(userID string) string {
	return "kreatorboard:auth:revoked:user:" + userID
}
