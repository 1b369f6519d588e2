package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newLimiter(t *testing.T, whitelist ...string) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, zerolog.Nop(), RateLimiterConfig{Whitelist: whitelist}), mr
}

func TestAllow(t *testing.T) {
	rl, _ := newLimiter(t)
	ctx := context.Background()
	key := UserKey("alice", "publish_post")

	for i := 0; i < 3; i++ {
		ok, remaining, _ := rl.Allow(ctx, key, 3, time.Minute)
		if !ok {
			t.Fatalf("call %d rejected", i)
		}
		if remaining != 2-i {
			t.Fatalf("call %d: remaining %d", i, remaining)
		}
	}
	if ok, _, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("fourth call allowed")
	}
	if ok, _, _ := rl.Allow(ctx, UserKey("bob", "publish_post"), 3, time.Minute); !ok {
		t.Fatal("limit leaked across users")
	}
}

func TestAllowFailsOpen(t *testing.T) {
	rl, mr := newLimiter(t)
	mr.Close()
	if ok, _, _ := rl.Allow(context.Background(), "k", 1, time.Minute); !ok {
		t.Fatal("expected fail-open on redis error")
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newLimiter(t, "10.0.0.0/8")
	rl.limits = map[string]RateLimit{"GET /users": {1, time.Minute, ipKey}}
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(path, ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", path, nil)
		r.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	if rec := call("/users?prefix=a", "192.0.2.1"); rec.Code != http.StatusOK {
		t.Fatalf("first call: %d", rec.Code)
	}
	rec := call("/users/bob", "192.0.2.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second call: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rec := call("/health", "192.0.2.1"); rec.Code != http.StatusOK {
		t.Fatalf("unlimited route: %d", rec.Code)
	}
	for i := 0; i < 3; i++ {
		if rec := call("/users", "10.1.2.3"); rec.Code != http.StatusOK {
			t.Fatalf("whitelisted call %d: %d", i, rec.Code)
		}
	}
}

func TestFindLimitPrefersLongestPattern(t *testing.T) {
	rl, _ := newLimiter(t)
	_, pattern := rl.findLimit(httptest.NewRequest("GET", "/users/alice", nil))
	if pattern != "GET /users/" {
		t.Fatalf("got %q", pattern)
	}
	_, pattern = rl.findLimit(httptest.NewRequest("GET", "/users", nil))
	if pattern != "GET /users" {
		t.Fatalf("got %q", pattern)
	}
}
