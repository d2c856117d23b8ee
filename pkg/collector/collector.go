// Package collector runs probes concurrently and aggregates their outcomes into snapshots.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultWorkers is the number of probes allowed to run at once
	DefaultWorkers = 4

	// DefaultTimeout applies to probes that declare no timeout
	DefaultTimeout = 2 * time.Second
)

// Collector executes requested probes through a bounded worker pool
type Collector struct {
	registry *probes.Registry
	logger   *slog.Logger

	workers        int
	defaultTimeout time.Duration
	overrides      map[string]time.Duration

	// FIFO: semaphore.Weighted serves waiters in arrival order
	pool *semaphore.Weighted

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	stats stats
}

type stats struct {
	collections atomic.Uint64
	values      atomic.Uint64
	unavailable atomic.Uint64
	timedOut    atomic.Uint64
	failed      atomic.Uint64
}

// Stats is a point-in-time copy of the collector counters
type Stats struct {
	Collections uint64
	Values      uint64
	Unavailable uint64
	TimedOut    uint64
	Failed      uint64
}

// Option is a functional option for configuring the Collector
type Option func(*Collector)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithWorkers sets the worker pool size
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDefaultTimeout sets the timeout for probes that declare none
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithTimeoutOverrides replaces the declared timeout of specific probes
func WithTimeoutOverrides(overrides map[string]time.Duration) Option {
	return func(c *Collector) {
		for name, d := range overrides {
			if d > 0 {
				c.overrides[name] = d
			}
		}
	}
}

// New creates a collector over a registry.
// The registry is frozen: no probe can be added once collection is possible.
func New(registry *probes.Registry, opts ...Option) *Collector {
	c := &Collector{
		registry:       registry,
		logger:         slog.Default(),
		workers:        DefaultWorkers,
		defaultTimeout: DefaultTimeout,
		overrides:      make(map[string]time.Duration),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.pool = semaphore.NewWeighted(int64(c.workers))
	registry.Freeze()
	return c
}

// Registry returns the registry the collector reads from
func (c *Collector) Registry() *probes.Registry {
	return c.registry
}

// Workers returns the worker pool size
func (c *Collector) Workers() int {
	return c.workers
}

// TimeoutFor returns the effective timeout of a probe
func (c *Collector) TimeoutFor(p probes.Probe) time.Duration {
	if d, ok := c.overrides[p.Name]; ok {
		return d
	}
	if p.Timeout > 0 {
		return p.Timeout
	}
	return c.defaultTimeout
}

type result struct {
	name    string
	outcome types.Outcome
}

// Collect runs the named probes and returns a snapshot covering every name.
// Unknown names fail the whole call before any probe runs.
// Per-probe failures and timeouts are recorded as outcomes, never returned as errors.
func (c *Collector) Collect(ctx context.Context, names ...string) (*types.Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, types.ErrShutdown
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	batch, err := c.registry.Resolve(names)
	if err != nil {
		return nil, err
	}

	requestedAt := time.Now()
	out := make(chan result, len(batch))

	// Dispatch in request order; each probe waits for a worker slot
	for i, p := range batch {
		if err := c.pool.Acquire(ctx, 1); err != nil {
			for _, rest := range batch[i:] {
				out <- result{name: rest.Name, outcome: types.Failed(fmt.Errorf("not dispatched: %w", err))}
			}
			break
		}
		go c.execute(ctx, p, out)
	}

	order := make([]string, len(batch))
	results := make(map[string]types.Outcome, len(batch))
	for i, p := range batch {
		order[i] = p.Name
	}
	for range batch {
		r := <-out
		results[r.name] = r.outcome
		c.count(r.outcome)
	}

	snap := types.NewSnapshot(requestedAt, time.Now(), order, results)
	c.stats.collections.Add(1)

	c.logger.Debug("Collection complete",
		"probes", len(batch),
		"duration", snap.Duration(),
	)
	return snap, nil
}

// execute runs one probe holding a worker slot.
// The slot is released when the probe resolves or its timeout fires, whichever is first.
func (c *Collector) execute(ctx context.Context, p probes.Probe, out chan<- result) {
	timeout := c.TimeoutFor(p)
	start := time.Now()

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan types.Outcome, 1)
	go func() {
		done <- invoke(pctx, p)
	}()

	var outcome types.Outcome
	select {
	case outcome = <-done:
	case <-pctx.Done():
		select {
		case outcome = <-done:
		default:
			if err := ctx.Err(); err != nil {
				outcome = types.Failed(fmt.Errorf("collection cancelled: %w", err))
			} else {
				outcome = types.TimedOut()
			}
		}
	}
	outcome = deadlineOutcome(ctx, outcome)

	c.pool.Release(1)
	outcome.Elapsed = time.Since(start)

	switch outcome.Kind {
	case types.KindTimedOut:
		c.logger.Warn("Probe timed out", "probe", p.Name, "timeout", timeout)
	case types.KindFailed:
		c.logger.Debug("Probe failed", "probe", p.Name, "error", outcome.Err)
	default:
		c.logger.Debug("Probe resolved", "probe", p.Name, "kind", outcome.Kind, "elapsed", outcome.Elapsed)
	}

	out <- result{name: p.Name, outcome: outcome}
}

// deadlineOutcome reports a probe that gave up on its own deadline as timed out.
// A cancelled caller context keeps the failure.
func deadlineOutcome(ctx context.Context, o types.Outcome) types.Outcome {
	if o.Kind == types.KindFailed && errors.Is(o.Err, context.DeadlineExceeded) && ctx.Err() == nil {
		return types.TimedOut()
	}
	return o
}

// invoke calls the probe function, converting errors and panics into outcomes
func invoke(ctx context.Context, p probes.Probe) (outcome types.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = types.Failed(fmt.Errorf("probe %s panicked: %v", p.Name, r))
		}
	}()

	v, err := p.Run(ctx)
	if err != nil {
		var unavailable *types.UnavailableError
		if errors.As(err, &unavailable) {
			return types.Unavailable(unavailable.Reason)
		}
		return types.Failed(err)
	}
	return types.Value(v)
}

func (c *Collector) count(o types.Outcome) {
	switch o.Kind {
	case types.KindValue:
		c.stats.values.Add(1)
	case types.KindUnavailable:
		c.stats.unavailable.Add(1)
	case types.KindTimedOut:
		c.stats.timedOut.Add(1)
	case types.KindFailed:
		c.stats.failed.Add(1)
	}
}

// Stats returns the collector counters
func (c *Collector) Stats() Stats {
	return Stats{
		Collections: c.stats.collections.Load(),
		Values:      c.stats.values.Load(),
		Unavailable: c.stats.unavailable.Load(),
		TimedOut:    c.stats.timedOut.Load(),
		Failed:      c.stats.failed.Load(),
	}
}

// Shutdown stops accepting new collections and waits for in-flight ones.
// Probes abandoned by a timeout are not waited for.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		c.logger.Info("Collector drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("collector drain: %w", ctx.Err())
	}
}
