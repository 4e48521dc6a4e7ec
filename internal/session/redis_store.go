/**
 * @description
 * Redis-backed session profile store. Each user's profile lives as a JSON blob
 * under a single key (`<prefix>:<userID>`), matching the single-key persisted
 * client state the dashboard relies on.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "gateway:session"

// RedisStore persists profiles in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store using the given client and key prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(userID string) string {
	return r.prefix + ":" + userID
}

// Load returns the stored profile or ErrNotFound.
func (r *RedisStore) Load(ctx context.Context, userID string) (Profile, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load session profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to decode session profile: %w", err)
	}
	return profile, nil
}

// Save stores the profile as a JSON blob under the user's key.
func (r *RedisStore) Save(ctx context.Context, profile Profile) error {
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode session profile: %w", err)
	}
	if err := r.client.Set(ctx, r.key(profile.UserID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session profile: %w", err)
	}
	return nil
}

// Delete removes the user's key, tolerating absence.
func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session profile: %w", err)
	}
	return nil
}
