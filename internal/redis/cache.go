package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"circle-chat/internal/domain/user"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - profile:{user_id} - ProfileTTL, read-through copy of users/{id}

type CacheConfig struct {
	ProfileTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ProfileTTL: 5 * time.Minute,
	}
}

// ProfileCache keeps short-lived copies of user profiles so conversation list rebuilds do
// not refetch every counterpart on each push.
type ProfileCache struct {
	client *goredis.Client
	config CacheConfig
}

func NewProfileCache(client *goredis.Client, config CacheConfig) *ProfileCache {
	if config.ProfileTTL <= 0 {
		config.ProfileTTL = DefaultCacheConfig().ProfileTTL
	}
	return &ProfileCache{
		client: client,
		config: config,
	}
}

type profileCacheEntry struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	DisplayName  string   `json:"display_name"`
	ProfilePic   string   `json:"profile_pic,omitempty"`
	Friends      []string `json:"friends"`
	BlockedUsers []string `json:"blocked_users"`
	CachedAt     int64    `json:"cached_at"`
}

func profileKey(id string) string {
	return fmt.Sprintf("profile:%s", id)
}

// GetProfile returns (nil, nil) on a cache miss.
func (c *ProfileCache) GetProfile(ctx context.Context, id string) (*user.User, error) {
	data, err := c.client.Get(ctx, profileKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var entry profileCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	u := user.User{
		ID:           entry.ID,
		Username:     entry.Username,
		DisplayName:  entry.DisplayName,
		ProfilePic:   entry.ProfilePic,
		Friends:      entry.Friends,
		BlockedUsers: entry.BlockedUsers,
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	if u.BlockedUsers == nil {
		u.BlockedUsers = []string{}
	}
	return &u, nil
}

func (c *ProfileCache) SetProfile(ctx context.Context, u user.User) error {
	entry := profileCacheEntry{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfilePic:   u.ProfilePic,
		Friends:      u.Friends,
		BlockedUsers: u.BlockedUsers,
		CachedAt:     time.Now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(u.ID), data, c.config.ProfileTTL).Err()
}

// InvalidateProfile drops the cached copy, used after block/unblock writes.
func (c *ProfileCache) InvalidateProfile(ctx context.Context, id string) error {
	return c.client.Del(ctx, profileKey(id)).Err()
}
