package cache

import (
	"testing"
	"time"
)

func TestCache_SetUntilExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	c.SetUntil("a", true, now.Add(10*time.Second))
	c.SetUntil("b", 1, now.Add(time.Minute))

	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to be present")
	}

	now = now.Add(10 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be expired at its deadline")
	}
	if v, ok := c.Get("b"); !ok || v.(int) != 1 {
		t.Fatalf("expected b=1, got %v %v", v, ok)
	}
}

func TestCache_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	c.SetUntil("old", 1, now.Add(time.Second))
	c.SetUntil("new", 2, now.Add(time.Hour))

	now = now.Add(2 * time.Second)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("Sweep dropped %d, want 1", n)
	}
	if n := c.Sweep(); n != 0 {
		t.Fatalf("second Sweep dropped %d, want 0", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatalf("expected new to survive the sweep")
	}
}
