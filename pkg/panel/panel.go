// Package panel wires the registry, collector, scheduler and optional Redis mirror
// behind the API a dashboard front end consumes.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/root0emir/SecuronisControlPanel/internal/redis"
	"github.com/root0emir/SecuronisControlPanel/pkg/collector"
	"github.com/root0emir/SecuronisControlPanel/pkg/config"
	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/probes/host"
	"github.com/root0emir/SecuronisControlPanel/pkg/scheduler"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/root0emir/SecuronisControlPanel/pkg/views"
)

// mirrorTimeout bounds a single mirror write issued from a subscription callback
const mirrorTimeout = 2 * time.Second

// ErrUnknownGroup is returned for a group name not defined in views
var ErrUnknownGroup = errors.New("unknown group")

// Panel is the collection core of the control panel
type Panel struct {
	config *config.Config
	logger *slog.Logger

	registry  *probes.Registry
	collector *collector.Collector
	scheduler *scheduler.Scheduler
	mirror    *redis.Mirror

	mu      sync.Mutex
	running bool
	stopped bool
}

// Stats combines the collector and scheduler counters
type Stats struct {
	Collector collector.Stats
	Scheduler scheduler.Stats
}

// Option is a functional option for configuring the Panel
type Option func(*Panel)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		p.logger = logger
	}
}

// WithRegistry replaces the host probe registry
func WithRegistry(r *probes.Registry) Option {
	return func(p *Panel) {
		p.registry = r
	}
}

// WithMirror sets the Redis mirror instead of dialing config.MirrorRedisURL
func WithMirror(m *redis.Mirror) Option {
	return func(p *Panel) {
		p.mirror = m
	}
}

// New creates a Panel; the registry is frozen from here on
func New(cfg *config.Config, opts ...Option) (*Panel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Panel{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.registry == nil {
		r, err := host.NewRegistry(host.Options{
			Root:           cfg.HostRoot,
			CommandTimeout: cfg.CommandTimeout,
			NetworkTimeout: cfg.NetworkTimeout,
			PublicIPURL:    cfg.PublicIPURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register host probes: %w", err)
		}
		p.registry = r
	}

	overrides := slices.Sorted(maps.Keys(cfg.ProbeTimeouts))
	if err := p.registry.Check(overrides); err != nil {
		return nil, fmt.Errorf("probe_timeouts: %w", err)
	}

	p.collector = collector.New(p.registry,
		collector.WithLogger(p.logger),
		collector.WithWorkers(cfg.Workers),
		collector.WithDefaultTimeout(cfg.DefaultTimeout),
		collector.WithTimeoutOverrides(cfg.ProbeTimeouts),
	)
	p.scheduler = scheduler.New(p.collector,
		scheduler.WithLogger(p.logger),
		scheduler.WithResolver(p.registry),
	)

	if p.mirror == nil && cfg.MirrorRedisURL != "" {
		m, err := redis.NewMirrorLazy(cfg.MirrorRedisURL, cfg.MirrorPrefix, cfg.MirrorTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid mirror redis URL: %w", err)
		}
		p.mirror = m
	}

	return p, nil
}

// Start begins periodic collection
func (p *Panel) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("panel already running")
	}
	p.running = true
	p.mu.Unlock()

	// Mirror connection is non-fatal
	if p.mirror != nil {
		if err := p.mirror.Ping(ctx); err != nil {
			p.logger.Warn("Failed to connect to mirror Redis, snapshots will not be mirrored until it is reachable", "error", err)
		}
	}

	if err := p.scheduler.Start(); err != nil {
		return err
	}

	p.logger.Info("Control panel started",
		"probes", p.registry.Len(),
		"workers", p.collector.Workers(),
		"mirror", p.mirror != nil,
	)
	return nil
}

// Registry returns the frozen probe registry
func (p *Panel) Registry() *probes.Registry {
	return p.registry
}

// CollectOnce collects the named metrics synchronously
func (p *Panel) CollectOnce(ctx context.Context, names ...string) (*types.Snapshot, error) {
	return p.scheduler.CollectOnce(ctx, names...)
}

// CollectGroup collects every metric of a view group and mirrors the result
func (p *Panel) CollectGroup(ctx context.Context, group string) (*types.Snapshot, error) {
	g, err := lookup(group)
	if err != nil {
		return nil, err
	}

	snap, err := p.scheduler.CollectOnce(ctx, g.Metrics...)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, g.Name, snap)
	return snap, nil
}

// Subscribe registers a callback for arbitrary metrics
func (p *Panel) Subscribe(names []string, interval time.Duration, cb scheduler.Callback) (scheduler.Handle, error) {
	return p.scheduler.Subscribe(names, interval, cb)
}

// SubscribeGroup registers a callback for a view group; snapshots are mirrored before delivery
func (p *Panel) SubscribeGroup(group string, interval time.Duration, cb scheduler.Callback) (scheduler.Handle, error) {
	g, err := lookup(group)
	if err != nil {
		return 0, err
	}
	if cb == nil {
		return 0, fmt.Errorf("subscription needs a callback")
	}

	return p.scheduler.Subscribe(g.Metrics, interval, func(snap *types.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		p.publish(ctx, g.Name, snap)
		cancel()
		cb(snap)
	})
}

// Unsubscribe cancels a subscription
func (p *Panel) Unsubscribe(h scheduler.Handle) error {
	return p.scheduler.Unsubscribe(h)
}

// Refresh requests an immediate cycle for a subscription
func (p *Panel) Refresh(h scheduler.Handle) (bool, error) {
	return p.scheduler.Refresh(h)
}

// Stats returns the current counters
func (p *Panel) Stats() Stats {
	return Stats{
		Collector: p.collector.Stats(),
		Scheduler: p.scheduler.Stats(),
	}
}

// Shutdown stops scheduling, drains the collector and closes the mirror.
// It is safe to call more than once.
func (p *Panel) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	var errs []error
	if err := p.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := p.collector.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if p.mirror != nil {
		if err := p.mirror.Close(); err != nil {
			p.logger.Error("Failed to close mirror Redis", "error", err)
		}
	}

	p.logger.Info("Control panel stopped")
	return errors.Join(errs...)
}

func (p *Panel) publish(ctx context.Context, group string, snap *types.Snapshot) {
	if p.mirror == nil {
		return
	}
	if err := p.mirror.Publish(ctx, group, snap); err != nil {
		p.logger.Warn("Snapshot mirror failed", "group", group, "error", err)
		return
	}
	p.logger.Debug("Snapshot mirrored", "group", group, "key", p.mirror.SnapshotKey(group))
}

func lookup(group string) (views.Group, error) {
	g, ok := views.Lookup(group)
	if !ok {
		return views.Group{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownGroup, group, views.Names())
	}
	return g, nil
}
