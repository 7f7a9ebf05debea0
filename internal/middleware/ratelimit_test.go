package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		if !rl.Allow("10.0.0.7", 5, time.Minute) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	if rl.Allow("10.0.0.7", 5, time.Minute) {
		t.Error("6th attempt should be denied")
	}

	// A different client has its own budget.
	if !rl.Allow("10.0.0.8", 5, time.Minute) {
		t.Error("other client should not share the exhausted window")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 3; i++ {
		rl.Allow("10.0.0.7", 3, 10*time.Millisecond)
	}
	if rl.Allow("10.0.0.7", 3, 10*time.Millisecond) {
		t.Error("should be blocked within window")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("10.0.0.7", 3, 10*time.Millisecond) {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 5, 10*time.Millisecond)
	time.Sleep(15 * time.Millisecond)

	rl.Allow("active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["stale"]; ok {
		t.Error("stale entry should have been cleaned up")
	}
	if _, ok := rl.entries["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

// The limiter fronts POST /api/unlock so PIN guessing runs out of attempts.
func TestRateLimitGuardsUnlock(t *testing.T) {
	rl := NewRateLimiter()
	byIP := func(r *http.Request) string { return RealIP(r) }

	handler := RateLimit(rl, byIP, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	unlock := func() int {
		req := httptest.NewRequest("POST", "/api/unlock", strings.NewReader(`{"pin":"0000"}`))
		req.RemoteAddr = "10.0.0.7:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := unlock(); code != http.StatusUnauthorized {
			t.Errorf("attempt %d: status = %d, want %d", i+1, code, http.StatusUnauthorized)
		}
	}
	if code := unlock(); code != http.StatusTooManyRequests {
		t.Errorf("3rd attempt: status = %d, want %d", code, http.StatusTooManyRequests)
	}
}
