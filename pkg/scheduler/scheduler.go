// Package scheduler issues collection cycles on timers and on demand,
// publishing snapshots to subscriber callbacks without blocking the caller.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

// ErrUnknownSubscription is returned for handles that are not (or no longer) subscribed
var ErrUnknownSubscription = errors.New("unknown subscription")

// ErrStopped is returned when subscribing to a stopped scheduler
var ErrStopped = errors.New("scheduler stopped")

// Collector is the part of the collector the scheduler depends on
type Collector interface {
	Collect(ctx context.Context, names ...string) (*types.Snapshot, error)
}

// Resolver validates metric names at subscription time
type Resolver interface {
	Check(names []string) error
}

// Callback receives each snapshot of a subscription
type Callback func(*types.Snapshot)

// Handle identifies a subscription
type Handle uint64

// OnDemand is the interval of subscriptions refreshed only through Refresh
const OnDemand time.Duration = 0

type subscription struct {
	handle   Handle
	names    []string
	interval time.Duration
	callback Callback

	next      time.Time // periodic only
	inFlight  bool
	cancelled bool
	seq       uint64 // cycles started

	// Delivery: one pending slot, drained by whichever cycle goroutine holds delivering
	deliverMu  sync.Mutex
	delivering bool
	pending    *types.Snapshot
	pendingSeq uint64
	delivered  uint64 // seq of the last delivered snapshot
}

// Stats is a point-in-time copy of the scheduler counters
type Stats struct {
	Subscriptions int
	Cycles        uint64
	Dropped       uint64
	Superseded    uint64 // snapshots replaced by a newer one while a callback was running
	Errors        uint64
}

// Scheduler runs one actor goroutine that starts collection cycles.
// Cycles run on their own goroutines; the actor never waits on them.
type Scheduler struct {
	collector Collector
	resolver  Resolver
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	subs    map[Handle]*subscription
	nextID  Handle
	running bool
	stopped bool

	wake     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	cycles   sync.WaitGroup

	cycleCount atomic.Uint64
	dropped    atomic.Uint64
	superseded atomic.Uint64
	errCount   atomic.Uint64
}

// Option is a functional option for configuring the Scheduler
type Option func(*Scheduler)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithResolver validates subscription names eagerly
func WithResolver(r Resolver) Option {
	return func(s *Scheduler) {
		s.resolver = r
	}
}

// New creates a scheduler; call Start to begin issuing periodic cycles
func New(c Collector, opts ...Option) *Scheduler {
	s := &Scheduler{
		collector: c,
		logger:    slog.Default(),
		now:       time.Now,
		subs:      make(map[Handle]*subscription),
		wake:      make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start launches the actor goroutine
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true

	go s.loop()
	return nil
}

// Subscribe registers a callback for the named metrics.
// A positive interval schedules a cycle immediately and then every interval;
// OnDemand subscriptions only run through Refresh.
func (s *Scheduler) Subscribe(names []string, interval time.Duration, cb Callback) (Handle, error) {
	if len(names) == 0 {
		return 0, fmt.Errorf("subscription needs at least one metric")
	}
	if cb == nil {
		return 0, fmt.Errorf("subscription needs a callback")
	}
	if interval < 0 {
		return 0, fmt.Errorf("interval must be >= 0")
	}
	if s.resolver != nil {
		if err := s.resolver.Check(names); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrStopped
	}

	s.nextID++
	sub := &subscription{
		handle:   s.nextID,
		names:    append([]string(nil), names...),
		interval: interval,
		callback: cb,
		next:     s.now(),
	}
	s.subs[sub.handle] = sub

	s.logger.Debug("Subscribed", "handle", sub.handle, "metrics", len(names), "interval", interval)
	s.poke()
	return sub.handle, nil
}

// Unsubscribe cancels a subscription.
// An in-flight cycle still delivers its snapshot once, then the subscription is torn down.
func (s *Scheduler) Unsubscribe(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[h]
	if !ok || sub.cancelled {
		return ErrUnknownSubscription
	}
	sub.cancelled = true
	if !sub.inFlight {
		delete(s.subs, h)
	}

	s.logger.Debug("Unsubscribed", "handle", h, "inFlight", sub.inFlight)
	return nil
}

// Refresh starts one asynchronous cycle for a subscription.
// It returns false when the previous cycle is still outstanding and the request is dropped.
func (s *Scheduler) Refresh(h Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false, ErrStopped
	}
	sub, ok := s.subs[h]
	if !ok || sub.cancelled {
		return false, ErrUnknownSubscription
	}
	if sub.inFlight {
		s.drop(sub)
		return false, nil
	}
	s.dispatch(sub)
	return true, nil
}

// CollectOnce runs a synchronous collection outside any subscription
func (s *Scheduler) CollectOnce(ctx context.Context, names ...string) (*types.Snapshot, error) {
	return s.collector.Collect(ctx, names...)
}

// Stats returns the scheduler counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	n := len(s.subs)
	s.mu.Unlock()

	return Stats{
		Subscriptions: n,
		Cycles:        s.cycleCount.Load(),
		Dropped:       s.dropped.Load(),
		Superseded:    s.superseded.Load(),
		Errors:        s.errCount.Load(),
	}
}

// Stop halts the actor and waits for in-flight cycles and their callbacks.
// It is safe to call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	wasRunning := s.running
	s.mu.Unlock()

	close(s.stopChan)
	if wasRunning {
		<-s.done
	}

	drained := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler drain: %w", ctx.Err())
	}
}

// poke wakes the actor so it recomputes its next deadline
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.tick()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.stopChan:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// idleWait bounds how long the actor sleeps with nothing due
const idleWait = time.Minute

// tick starts every due cycle and returns how long to sleep until the next one
func (s *Scheduler) tick() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wait := idleWait

	for _, sub := range s.subs {
		if sub.cancelled || sub.interval == OnDemand {
			continue
		}

		if !sub.next.After(now) {
			if sub.inFlight {
				s.drop(sub)
			} else {
				s.dispatch(sub)
			}
			// Interval is measured from the scheduled start of the previous cycle
			for !sub.next.After(now) {
				sub.next = sub.next.Add(sub.interval)
			}
		}

		if d := sub.next.Sub(now); d < wait {
			wait = d
		}
	}

	return wait
}

// drop records a skipped tick; caller holds s.mu
func (s *Scheduler) drop(sub *subscription) {
	s.dropped.Add(1)
	s.logger.Warn("Dropped cycle, previous collection still in flight",
		"handle", sub.handle,
		"interval", sub.interval,
	)
}

// dispatch starts a cycle for sub; caller holds s.mu
func (s *Scheduler) dispatch(sub *subscription) {
	sub.inFlight = true
	sub.seq++
	seq := sub.seq

	s.cycleCount.Add(1)
	s.cycles.Add(1)
	go s.runCycle(sub, seq)
}

func (s *Scheduler) runCycle(sub *subscription, seq uint64) {
	defer s.cycles.Done()

	snap, err := s.collector.Collect(context.Background(), sub.names...)

	// Mark the cycle complete before the callback so a slow callback never blocks ticks
	s.mu.Lock()
	sub.inFlight = false
	if sub.cancelled {
		delete(s.subs, sub.handle)
	}
	s.mu.Unlock()

	if err != nil {
		s.errCount.Add(1)
		s.logger.Error("Collection cycle failed", "handle", sub.handle, "error", err)
		return
	}

	s.deliver(sub, seq, snap)
}

// deliver hands snap to the subscription's callback.
// Callbacks for one subscription never run concurrently. While one runs, newer snapshots
// replace the pending one, so a slow callback holds at most one snapshot and one goroutine.
func (s *Scheduler) deliver(sub *subscription, seq uint64, snap *types.Snapshot) {
	sub.deliverMu.Lock()
	if seq <= sub.delivered || seq <= sub.pendingSeq {
		sub.deliverMu.Unlock()
		s.logger.Debug("Discarded stale snapshot", "handle", sub.handle, "seq", seq)
		return
	}
	if sub.pending != nil {
		s.superseded.Add(1)
		s.logger.Debug("Superseded pending snapshot", "handle", sub.handle, "seq", sub.pendingSeq)
	}
	sub.pending, sub.pendingSeq = snap, seq
	if sub.delivering {
		sub.deliverMu.Unlock()
		return
	}

	sub.delivering = true
	for sub.pending != nil {
		next := sub.pending
		sub.delivered = sub.pendingSeq
		sub.pending = nil
		sub.deliverMu.Unlock()

		s.invoke(sub, next)

		sub.deliverMu.Lock()
	}
	sub.delivering = false
	sub.deliverMu.Unlock()
}

// invoke runs the callback, containing panics
func (s *Scheduler) invoke(sub *subscription, snap *types.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Subscriber callback panicked", "handle", sub.handle, "panic", r)
		}
	}()
	sub.callback(snap)
}
