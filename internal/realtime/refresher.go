package realtime

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dahanmed/careops/internal/shared/config"
	"github.com/dahanmed/careops/internal/shared/metrics"
)

// RefreshFunc reloads whatever the caller caches. The source is "push" for
// change-driven refreshes and "poll" for the fallback ticker.
type RefreshFunc func(ctx context.Context, source string)

// Refresher unifies push and polling into one refresh path. Change
// notifications from the realtime channel drive invalidation; a
// low-frequency jittered poll catches anything missed while the channel
// was down; a rate limiter coalesces bursts so a flood of row changes
// becomes one refresh.
type Refresher struct {
	client   *Client
	refresh  RefreshFunc
	limiter  *rate.Limiter
	interval time.Duration
	jitter   time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a refresher over a realtime client
func NewRefresher(client *Client, cfg config.SyncConfig, refresh RefreshFunc, log zerolog.Logger) *Refresher {
	return &Refresher{
		client:   client,
		refresh:  refresh,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		interval: cfg.PollFallback,
		jitter:   cfg.PollJitter,
		log:      log,
	}
}

// Start connects the channel and begins the polling fallback
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.client.OnAny(func(Change) {
		r.invalidate(runCtx, "push")
	})
	r.client.Connect(runCtx)

	r.wg.Add(1)
	go r.pollLoop(runCtx)
}

// Stop disconnects the channel and stops polling
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.client.Disconnect()
	r.wg.Wait()
}

func (r *Refresher) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.nextInterval()):
			r.invalidate(ctx, "poll")
		}
	}
}

// nextInterval spreads polls out so multiple instances do not hit the store
// in lockstep
func (r *Refresher) nextInterval() time.Duration {
	if r.jitter <= 0 {
		return r.interval
	}
	return r.interval + time.Duration(rand.Int63n(int64(r.jitter)))
}

func (r *Refresher) invalidate(ctx context.Context, source string) {
	if ctx.Err() != nil {
		return
	}
	if !r.limiter.Allow() {
		return
	}

	metrics.RecordSyncInvalidation(source)
	r.refresh(ctx, source)
}
