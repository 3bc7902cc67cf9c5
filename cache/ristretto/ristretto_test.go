package ristretto

import (
	"testing"
	"time"

	"github.com/caasmo/banlog/cache"
)

var _ cache.Cache[uint64, bool] = (*Cache[uint64, bool])(nil)

func TestNew(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		counters int64
		maxCost  int64
		wantErr  bool
	}{
		{"small", 1000, 100, false},
		{"large", 1e6, 1 << 20, false},
		{"zero counters", 0, 100, true},
		{"negative cost", 1000, -1, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New[uint64, bool](tc.counters, tc.maxCost)
			if (err != nil) != tc.wantErr {
				t.Fatalf("New(%d, %d) error = %v, wantErr %v", tc.counters, tc.maxCost, err, tc.wantErr)
			}
			if err == nil {
				c.Close()
			}
		})
	}
}

func TestCache_GetOverwrite(t *testing.T) {
	t.Parallel()
	c, err := New[uint64, bool](1000, 100)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer c.Close()

	c.SetWithTTL(42, true, 1, time.Hour)
	c.Wait()
	if v, ok := c.Get(42); !ok || !v {
		t.Errorf("Get(42) = %v, %v, want true, true", v, ok)
	}

	if v, ok := c.Get(7); ok || v {
		t.Errorf("Get(7) = %v, %v, want false, false", v, ok)
	}

	c.SetWithTTL(42, false, 1, time.Hour)
	c.Wait()
	if v, ok := c.Get(42); !ok || v {
		t.Errorf("Get(42) after overwrite = %v, %v, want false, true", v, ok)
	}
}

func TestCache_SetWithTTL(t *testing.T) {
	t.Parallel()
	c, err := New[string, int](1000, 100)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer c.Close()

	ttl := 20 * time.Millisecond
	c.SetWithTTL("ttl-key", 123, 1, ttl)
	c.Wait()
	if v, ok := c.Get("ttl-key"); !ok || v != 123 {
		t.Errorf("Get() before expiry = %v, %v, want 123, true", v, ok)
	}

	time.Sleep(ttl * 3)
	if _, ok := c.Get("ttl-key"); ok {
		t.Error("Get() after expiry found the key")
	}
}
