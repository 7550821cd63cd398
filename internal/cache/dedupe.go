package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/metrics"
)

// DefaultWindow is how long an in-flight call may be joined.
const DefaultWindow = time.Second

// call is one in-flight invocation. val and err are written before done is
// closed and only read after.
type call struct {
	done    chan struct{}
	val     any
	err     error
	started time.Time
}

// Deduplicator collapses concurrent calls under the same key into one.
type Deduplicator struct {
	mu      sync.Mutex
	calls   map[string]*call
	window  time.Duration
	nowFunc func() time.Time
}

// NewDeduplicator creates a deduplicator. A non-positive window means
// DefaultWindow.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{
		calls:   make(map[string]*call),
		window:  window,
		nowFunc: time.Now,
	}
}

// Do runs fn under key. A caller arriving while a call under key started
// less than one window ago is still running waits for that call instead.
// The entry is removed as soon as the call settles, so the next caller
// after that starts a fresh call.
//
// fn runs detached from the first caller's cancellation; each caller still
// stops waiting when its own ctx is done.
func Do[T any](ctx context.Context, d *Deduplicator, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	d.mu.Lock()
	c, ok := d.calls[key]
	if ok && d.nowFunc().Sub(c.started) < d.window {
		d.mu.Unlock()
		metrics.DedupJoinedTotal.Inc()
	} else {
		c = &call{done: make(chan struct{}), started: d.nowFunc()}
		d.calls[key] = c
		d.mu.Unlock()
		go d.run(context.WithoutCancel(ctx), key, c, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.done:
	}

	if c.err != nil {
		return zero, c.err
	}
	v, ok := c.val.(T)
	if !ok && c.val != nil {
		return zero, eris.Errorf("cache: dedupe key %q holds %T", key, c.val)
	}
	return v, nil
}

func (d *Deduplicator) run(ctx context.Context, key string, c *call, fn func(ctx context.Context) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = eris.Errorf("cache: dedupe key %q panicked: %v", key, r)
			zap.L().Error("cache: deduplicated call panicked", zap.String("key", key), zap.Any("panic", r))
		}
		d.mu.Lock()
		if d.calls[key] == c {
			delete(d.calls, key)
		}
		d.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn(ctx)
}

// Len returns the number of in-flight entries.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// Sweep removes entries older than ten windows and returns how many were
// removed. Removed calls keep running; their waiters still get the result.
func (d *Deduplicator) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.nowFunc()
	removed := 0
	for k, c := range d.calls {
		if now.Sub(c.started) > 10*d.window {
			delete(d.calls, k)
			removed++
		}
	}
	return removed
}

// Run calls Sweep every interval until ctx is done.
func (d *Deduplicator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(); n > 0 {
				zap.L().Warn("cache: swept stale in-flight requests", zap.Int("removed", n))
			}
		}
	}
}
