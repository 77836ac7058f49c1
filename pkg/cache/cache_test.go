package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocalCache(t *testing.T) {
	cache := NewLocalCache(DefaultLocalConfig())
	defer cache.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := "test_key"
		value := "test_value"

		err := cache.Set(ctx, key, value, 1*time.Minute)
		if err != nil {
			t.Errorf("Failed to set cache: %v", err)
		}

		if retrieved, exists := cache.Get(ctx, key); !exists {
			t.Error("Cache value not found")
		} else if retrieved != value {
			t.Errorf("Expected %v, got %v", value, retrieved)
		}
	})

	t.Run("Add only once", func(t *testing.T) {
		key := "idem_key"

		if !cache.Add(ctx, key, 1, 1*time.Minute) {
			t.Error("First Add should succeed")
		}
		if cache.Add(ctx, key, 2, 1*time.Minute) {
			t.Error("Second Add should be rejected")
		}
	})

	t.Run("Increment from zero", func(t *testing.T) {
		key := "counter_key"

		if v, _ := cache.Increment(ctx, key, 3); v != 3 {
			t.Errorf("Expected 3, got %d", v)
		}
		if v, _ := cache.Increment(ctx, key, 2); v != 5 {
			t.Errorf("Expected 5, got %d", v)
		}
	})

	t.Run("GetWithTTL", func(t *testing.T) {
		key := "ttl_key"

		_ = cache.Set(ctx, key, "v", 1*time.Minute)
		_, ttl, exists := cache.GetWithTTL(ctx, key)
		if !exists {
			t.Fatal("Cache value not found")
		}
		if ttl <= 0 || ttl > 1*time.Minute {
			t.Errorf("Unexpected TTL: %v", ttl)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := "delete_key"

		_ = cache.Set(ctx, key, "v", 1*time.Minute)
		if err := cache.Delete(ctx, key); err != nil {
			t.Errorf("Failed to delete cache: %v", err)
		}
		if cache.Exists(ctx, key) {
			t.Error("Cache value should be gone")
		}
	})
}

func TestNewCacheFactory(t *testing.T) {
	t.Run("local by default", func(t *testing.T) {
		c, err := NewCache(Config{Local: DefaultLocalConfig()})
		if err != nil {
			t.Fatalf("Failed to create cache: %v", err)
		}
		defer c.Close()

		ctx := context.Background()
		if !c.Add(ctx, "k", 1, time.Minute) {
			t.Error("First Add should succeed")
		}
		if c.Add(ctx, "k", 1, time.Minute) {
			t.Error("Second Add should be rejected")
		}
	})

	t.Run("explicit local", func(t *testing.T) {
		c, err := NewCache(Config{Type: "local", Local: DefaultLocalConfig()})
		if err != nil {
			t.Fatalf("Failed to create cache: %v", err)
		}
		c.Close()
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewCache(Config{Type: "memcached"}); err == nil {
			t.Error("Unknown cache type should be rejected")
		}
	})
}
