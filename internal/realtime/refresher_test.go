package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/config"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		ReconnectDelay: 10 * time.Millisecond,
		PollFallback:   time.Hour,
		PollJitter:     time.Minute,
	}
}

func TestRefresherCoalescesBursts(t *testing.T) {
	var mu sync.Mutex
	refreshes := 0

	client := NewClient("http://127.0.0.1:0", zerolog.Nop(), WithAutoReconnect(false))
	r := NewRefresher(client, testSyncConfig(), func(ctx context.Context, source string) {
		mu.Lock()
		refreshes++
		mu.Unlock()
	}, zerolog.Nop())

	// A burst of changes within the limiter window collapses to one refresh
	for i := 0; i < 10; i++ {
		r.invalidate(context.Background(), "push")
	}

	mu.Lock()
	n := refreshes
	mu.Unlock()
	if n != 1 {
		t.Errorf("Expected 1 refresh for a burst, got %d", n)
	}
}

func TestRefresherInvalidateSources(t *testing.T) {
	var mu sync.Mutex
	var sources []string

	client := NewClient("http://127.0.0.1:0", zerolog.Nop(), WithAutoReconnect(false))
	r := NewRefresher(client, testSyncConfig(), func(ctx context.Context, source string) {
		mu.Lock()
		sources = append(sources, source)
		mu.Unlock()
	}, zerolog.Nop())

	r.invalidate(context.Background(), "push")
	time.Sleep(1100 * time.Millisecond)
	r.invalidate(context.Background(), "poll")

	mu.Lock()
	defer mu.Unlock()
	if len(sources) != 2 || sources[0] != "push" || sources[1] != "poll" {
		t.Errorf("Expected [push poll], got %v", sources)
	}
}

func TestRefresherStopsOnCanceledContext(t *testing.T) {
	called := false

	client := NewClient("http://127.0.0.1:0", zerolog.Nop(), WithAutoReconnect(false))
	r := NewRefresher(client, testSyncConfig(), func(ctx context.Context, source string) {
		called = true
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.invalidate(ctx, "push")

	if called {
		t.Error("Expected no refresh on a canceled context")
	}
}

func TestNextIntervalWithinJitterBounds(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", zerolog.Nop(), WithAutoReconnect(false))
	cfg := config.SyncConfig{PollFallback: time.Minute, PollJitter: 10 * time.Second}
	r := NewRefresher(client, cfg, func(context.Context, string) {}, zerolog.Nop())

	for i := 0; i < 100; i++ {
		d := r.nextInterval()
		if d < time.Minute || d >= time.Minute+10*time.Second {
			t.Fatalf("interval %v outside [1m, 1m10s)", d)
		}
	}
}

func TestRefresherStopWithoutStart(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", zerolog.Nop(), WithAutoReconnect(false))
	r := NewRefresher(client, testSyncConfig(), func(context.Context, string) {}, zerolog.Nop())

	// Must not panic or block
	r.Stop()
}
