package cache

import (
	"testing"
	"time"
)

func TestKey_StableAndNamespaced(t *testing.T) {
	a := Key("tavily", "some query")
	b := Key("tavily", "some query")
	if a != b {
		t.Errorf("Same input must derive the same key: %s vs %s", a, b)
	}
	if Key("other", "some query") == a {
		t.Error("Different namespaces must not collide")
	}
	if Key("tavily", "another query") == a {
		t.Error("Different values must not collide")
	}
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("Missing key must not be found")
	}

	if err := c.Set("k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, found := c.Get("k")
	if !found || string(got) != "value" {
		t.Errorf("Expected value, got %q %v", got, found)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("Deleted key must not be found")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, found := c.Get("k"); found {
		t.Error("Expired entry must not be found")
	}
}
