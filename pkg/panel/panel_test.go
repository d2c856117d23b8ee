package panel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/root0emir/SecuronisControlPanel/internal/redis"
	"github.com/root0emir/SecuronisControlPanel/pkg/config"
	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/probes/host"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/root0emir/SecuronisControlPanel/pkg/views"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hostRegistry points the real host probes at an empty tree with no commands installed
func hostRegistry(t *testing.T) *probes.Registry {
	t.Helper()
	noCommands := host.RunnerFunc(func(_ context.Context, name string, _ ...string) (string, error) {
		return "", types.NewUnavailable(name+" not installed", nil)
	})
	r, err := host.NewRegistry(host.Options{Root: t.TempDir(), Runner: noCommands})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newPanel(t *testing.T, cfg *config.Config, opts ...Option) *Panel {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts = append([]Option{WithLogger(quietLogger()), WithRegistry(hostRegistry(t))}, opts...)
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p
}

func newMirror(t *testing.T) (*redis.Mirror, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	m, err := redis.NewMirrorLazy("redis://"+srv.Addr(), "", redis.DefaultTTL)
	if err != nil {
		t.Fatal(err)
	}
	return m, srv
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 0

	var cfgErr *config.ConfigError
	if _, err := New(cfg, WithLogger(quietLogger())); !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigError, got %v", err)
	}
}

func TestNewRejectsUnknownTimeoutOverride(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProbeTimeouts = map[string]time.Duration{"publik_ip": time.Second}

	_, err := New(cfg, WithLogger(quietLogger()), WithRegistry(hostRegistry(t)))
	var unknown *types.UnknownMetricError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownMetricError, got %v", err)
	}
	if unknown.Suggestion != "public_ip" {
		t.Errorf("Expected suggestion public_ip, got %q", unknown.Suggestion)
	}
}

func TestCollectGroup(t *testing.T) {
	mirror, srv := newMirror(t)
	p := newPanel(t, nil, WithMirror(mirror))

	snap, err := p.CollectGroup(context.Background(), views.Power)
	if err != nil {
		t.Fatalf("CollectGroup() err=%v", err)
	}

	g, _ := views.Lookup(views.Power)
	if snap.Len() != len(g.Metrics) {
		t.Fatalf("Expected %d outcomes, got %d", len(g.Metrics), snap.Len())
	}
	for _, name := range g.Metrics {
		o, ok := snap.Get(name)
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if o.Kind != types.KindUnavailable {
			t.Errorf("%s: expected unavailable on an empty tree, got %s", name, o.Kind)
		}
	}

	if !srv.Exists("securonis:panel:snapshot:power") {
		t.Error("Expected snapshot to be mirrored")
	}
}

func TestCollectGroupUnknown(t *testing.T) {
	p := newPanel(t, nil)

	if _, err := p.CollectGroup(context.Background(), "widgets"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("Expected ErrUnknownGroup, got %v", err)
	}
	if _, err := p.SubscribeGroup("widgets", time.Second, func(*types.Snapshot) {}); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("Expected ErrUnknownGroup, got %v", err)
	}
}

func TestCollectOnceUnknownMetric(t *testing.T) {
	p := newPanel(t, nil)

	var unknown *types.UnknownMetricError
	if _, err := p.CollectOnce(context.Background(), "hostname", "temprature"); !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownMetricError, got %v", err)
	}
}

func TestSubscribeGroupMirrorsAndDelivers(t *testing.T) {
	mirror, srv := newMirror(t)
	p := newPanel(t, nil, WithMirror(mirror))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() err=%v", err)
	}

	got := make(chan *types.Snapshot, 4)
	h, err := p.SubscribeGroup(views.Power, 50*time.Millisecond, func(s *types.Snapshot) {
		select {
		case got <- s:
		default:
		}
	})
	if err != nil {
		t.Fatalf("SubscribeGroup() err=%v", err)
	}

	select {
	case snap := <-got:
		if snap.Len() != 2 {
			t.Errorf("Expected 2 outcomes, got %d", snap.Len())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	if !srv.Exists("securonis:panel:snapshot:power") {
		t.Error("Expected snapshot to be mirrored before delivery")
	}
	if err := p.Unsubscribe(h); err != nil {
		t.Errorf("Unsubscribe() err=%v", err)
	}
}

func TestOnDemandRefresh(t *testing.T) {
	p := newPanel(t, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := make(chan *types.Snapshot, 1)
	h, err := p.Subscribe([]string{"battery"}, 0, func(s *types.Snapshot) { got <- s })
	if err != nil {
		t.Fatalf("Subscribe() err=%v", err)
	}

	select {
	case <-got:
		t.Fatal("on-demand subscription ran without Refresh")
	case <-time.After(100 * time.Millisecond):
	}

	if ok, err := p.Refresh(h); !ok || err != nil {
		t.Fatalf("Refresh() = %v, %v", ok, err)
	}
	select {
	case snap := <-got:
		if snap.Display("battery") != types.Placeholder {
			t.Errorf("Expected placeholder, got %q", snap.Display("battery"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not deliver")
	}
}

func TestStartTwice(t *testing.T) {
	p := newPanel(t, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("Expected error on second Start")
	}
}

func TestShutdown(t *testing.T) {
	mirror, _ := newMirror(t)
	p := newPanel(t, nil, WithMirror(mirror))
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CollectOnce(context.Background(), "hostname"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() err=%v", err)
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() err=%v", err)
	}

	if _, err := p.CollectOnce(context.Background(), "hostname"); !errors.Is(err, types.ErrShutdown) {
		t.Errorf("Expected ErrShutdown, got %v", err)
	}
	if stats := p.Stats(); stats.Collector.Collections != 1 {
		t.Errorf("Expected 1 collection, got %d", stats.Collector.Collections)
	}
}
