package redis

import (
	"testing"
	"time"
)

func TestProfileKey(t *testing.T) {
	if got := profileKey("u1"); got != "profile:u1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewProfileCacheDefaultsTTL(t *testing.T) {
	c := NewProfileCache(nil, CacheConfig{})
	if c.config.ProfileTTL != 5*time.Minute {
		t.Fatalf("expected default ttl, got %s", c.config.ProfileTTL)
	}
	c = NewProfileCache(nil, CacheConfig{ProfileTTL: time.Minute})
	if c.config.ProfileTTL != time.Minute {
		t.Fatalf("expected configured ttl, got %s", c.config.ProfileTTL)
	}
}
