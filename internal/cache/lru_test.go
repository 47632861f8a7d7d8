package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestLRUCache_Expiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	var evicted []string
	c := NewLRUCache[int](10, time.Minute,
		WithClock[int](clk.Now),
		WithEvictHook(func(k string, _ int) { evicted = append(evicted, k) }))

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}
	clk.Advance(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expired entry")
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evict hook not called: %v", evicted)
	}
}

func TestLRUCache_CapacityEvictsLeastRecent(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCache_CleanExpiredAndPurge(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clk.Now))
	c.Set("a", 1)
	c.Set("b", 2)
	clk.Advance(30 * time.Second)
	c.Set("c", 3)
	clk.Advance(31 * time.Second)

	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired = %d, want 2", n)
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("purge left %d entries", c.Size())
	}
}

func TestManager_Sweep(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second, WithClock[int](clk.Now))
	c.Set("x", 1)
	clk.Advance(2 * time.Second)

	m := NewManager(nil)
	m.Register("forms", c)
	got := m.Sweep()
	if got["forms"] != 1 {
		t.Fatalf("sweep = %v", got)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
