package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestLRUOverwriteAndDelete(t *testing.T) {
	c := NewLRU[int, string](0, 0)
	c.Set(1, "x")
	c.Set(1, "y")
	if v, _ := c.Get(1); v != "y" {
		t.Fatalf("got %q", v)
	}
	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Fatal("expected deleted")
	}
	c.Set(2, "z")
	c.Purge()
	if c.Len() != 0 {
		t.Fatal("expected empty after purge")
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string, int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(30 * time.Second)
	c.Set("c", 3)
	now = now.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	j := NewJanitor(nil, c)
	if n := j.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry (b), got %d", n)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatal("c should still be fresh")
	}
}

func TestJanitorStartStop(t *testing.T) {
	c := NewLRU[string, int](1, time.Nanosecond)
	c.Set("a", 1)
	j := NewJanitor(nil, c)
	j.Start(time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	j.Stop()
	if c.Len() != 0 {
		t.Fatal("janitor did not sweep")
	}
}
