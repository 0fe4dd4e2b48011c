package weather

import (
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	c := NewCache[string](1 * time.Second)
	c.Set("key1", "value1")

	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if val != "value1" {
		t.Errorf("expected value1, got %s", val)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache[string](50 * time.Millisecond)
	c.Set("key1", "value1")

	time.Sleep(150 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache miss after TTL")
	}
}

func TestCache_NoTTLKeepsEntries(t *testing.T) {
	c := NewCache[int](0)
	c.Set("k", 7)

	time.Sleep(20 * time.Millisecond)

	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Fatalf("expected 7, got %d (hit=%v)", v, ok)
	}

	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after delete")
	}
}
