package httpx

import (
	"io"
	"log/slog"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestWindowForAlignsToEpoch(t *testing.T) {
	at := time.Date(2025, time.March, 4, 10, 20, 30, 0, time.UTC)
	idx, end := windowFor(at, time.Minute)
	if want := time.Date(2025, time.March, 4, 10, 21, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("expected window end %s, got %s", want, end)
	}
	idx2, _ := windowFor(at.Add(29*time.Second), time.Minute)
	if idx2 != idx {
		t.Fatalf("expected same window, got %d and %d", idx, idx2)
	}
	idx3, _ := windowFor(at.Add(30*time.Second), time.Minute)
	if idx3 != idx+1 {
		t.Fatalf("expected next window %d, got %d", idx+1, idx3)
	}
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	rl := newRedisRateLimiter(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer rl.Close()
	at := time.Date(2025, time.March, 4, 10, 20, 30, 0, time.UTC)
	rl.now = func() time.Time { return at }

	decision := rl.Allow("ip:203.0.113.9", 1, time.Minute)
	if !decision.allowed {
		t.Fatal("expected request to be allowed when redis is unreachable")
	}
	if want := time.Date(2025, time.March, 4, 10, 21, 0, 0, time.UTC); !decision.windowEnd.Equal(want) {
		t.Fatalf("expected window end %s, got %s", want, decision.windowEnd)
	}
}
