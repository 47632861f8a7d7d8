package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int, now *time.Time) *Limiter {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return *now }
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllowWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, 2, &now)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request in window should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients are independent")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("new window should reset the count")
	}
	if got := rl.GetMetrics().TotalHits; got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, 5, &now)
	rl.Allow("a")
	now = now.Add(11 * time.Minute)
	rl.Allow("b")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("active = %d", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyLimitsListedMethods(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, 1, &now)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET limited: %d", rr.Code)
		}
	}

	codes := []int{}
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("POST codes = %v", codes)
	}
}
