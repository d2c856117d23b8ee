// Securonis Control Panel - host telemetry collection daemon
//
// Collects system, hardware, privacy, network, disk, process, service, power and log
// metrics for the dashboard, refreshing the live usage group periodically.
//
// Usage:
//
//	securonis-panel --config /etc/securonis/panel.yaml
//
// Or collect one group and exit:
//
//	securonis-panel --once privacy --json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/config"
	"github.com/root0emir/SecuronisControlPanel/pkg/panel"
	"github.com/root0emir/SecuronisControlPanel/pkg/scheduler"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/root0emir/SecuronisControlPanel/pkg/views"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "/etc/securonis/panel.yaml", "path to the YAML config file")
	once := flag.String("once", "", "collect one group, print it and exit")
	asJSON := flag.Bool("json", false, "print snapshots as JSON")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("securonis-panel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "\nRun 'securonis-panel --help' for usage information.")
		os.Exit(1)
	}
	level, _ := cfg.Level()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	p, err := panel.New(cfg, panel.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to create control panel", "error", err)
		os.Exit(1)
	}

	if *once != "" {
		os.Exit(runOnce(p, *once, *asJSON, cfg.DefaultTimeout))
	}

	if !*asJSON {
		printBanner()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Start(ctx); err != nil {
		logger.Error("Failed to start control panel", "error", err)
		os.Exit(1)
	}

	out := printer{json: *asJSON}
	if _, err := p.SubscribeGroup(views.Live, cfg.LiveInterval, out.live); err != nil {
		logger.Error("Failed to subscribe live usage", "error", err)
		os.Exit(1)
	}

	// Every other tab refreshes on SIGHUP
	var tabs []scheduler.Handle
	for _, g := range views.All() {
		if g.Name == views.Live {
			continue
		}
		h, err := p.SubscribeGroup(g.Name, scheduler.OnDemand, out.tab(g))
		if err != nil {
			logger.Error("Failed to subscribe group", "group", g.Name, "error", err)
			os.Exit(1)
		}
		tabs = append(tabs, h)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

wait:
	for {
		select {
		case <-hup:
			for _, h := range tabs {
				if _, err := p.Refresh(h); err != nil {
					logger.Warn("Refresh failed", "handle", h, "error", err)
				}
			}
		case <-ctx.Done():
			break wait
		}
	}

	logger.Info("Received shutdown signal")

	// Graceful shutdown
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Shutdown(sctx); err != nil {
		logger.Error("Shutdown error", "error", err)
		os.Exit(1)
	}
}

func runOnce(p *panel.Panel, group string, asJSON bool, timeout time.Duration) int {
	g, ok := views.Lookup(group)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown group %q, expected one of: %s\n", group, strings.Join(views.Names(), ", "))
		return 2
	}

	// Allow the slowest probe plus queueing behind the pool
	ctx, cancel := context.WithTimeout(context.Background(), 4*timeout+shutdownTimeout)
	defer cancel()

	snap, err := p.CollectGroup(ctx, g.Name)
	if err != nil {
		slog.Error("Collection failed", "group", g.Name, "error", err)
		return 1
	}

	printer{json: asJSON}.tab(g)(snap)

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := p.Shutdown(sctx); err != nil {
		slog.Error("Shutdown error", "error", err)
		return 1
	}
	return 0
}

// printer renders delivered snapshots to stdout
type printer struct {
	json bool
}

func (pr printer) live(snap *types.Snapshot) {
	if pr.json {
		pr.emit(views.Live, snap)
		return
	}
	parts := make([]string, 0, snap.Len())
	for _, name := range snap.Names() {
		parts = append(parts, name+"="+snap.Display(name))
	}
	fmt.Printf("[%s] %s\n", snap.CompletedAt().Format(time.TimeOnly), strings.Join(parts, " | "))
}

func (pr printer) tab(g views.Group) scheduler.Callback {
	return func(snap *types.Snapshot) {
		if pr.json {
			pr.emit(g.Name, snap)
			return
		}
		// Single write per block
		os.Stdout.WriteString(formatTab(g, snap))
	}
}

// formatTab renders a group snapshot as a titled block, indenting multi-line values
func formatTab(g views.Group, snap *types.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (%s) ==\n", g.Title, snap.Duration().Round(time.Millisecond))
	for _, name := range snap.Names() {
		value := snap.Display(name)
		if strings.Contains(value, "\n") {
			value = "\n    " + strings.ReplaceAll(value, "\n", "\n    ")
		}
		fmt.Fprintf(&b, "  %-20s %s\n", name+":", value)
	}
	return b.String()
}

func (pr printer) emit(group string, snap *types.Snapshot) {
	data, err := json.Marshal(struct {
		Group    string          `json:"group"`
		Snapshot *types.Snapshot `json:"snapshot"`
	}{group, snap})
	if err != nil {
		slog.Error("Failed to encode snapshot", "group", group, "error", err)
		return
	}
	fmt.Println(string(data))
}

func printBanner() {
	fmt.Printf(`
  ███████ ███████  ██████ ██    ██ ██████   ██████  ███    ██ ██ ███████
  ██      ██      ██      ██    ██ ██   ██ ██    ██ ████   ██ ██ ██
  ███████ █████   ██      ██    ██ ██████  ██    ██ ██ ██  ██ ██ ███████
       ██ ██      ██      ██    ██ ██   ██ ██    ██ ██  ██ ██ ██      ██
  ███████ ███████  ██████  ██████  ██   ██  ██████  ██   ████ ██ ███████
  🛡️  Securonis Control Panel %s (%s)

`, version, commit[:min(7, len(commit))])
}

func printHelp() {
	fmt.Println(helpText())
}

func helpText() string {
	return `Usage: securonis-panel [options]

securonis-panel collects host telemetry for the Securonis dashboard. It refreshes
the live usage group on an interval and every other tab on SIGHUP.

Options:
  --config PATH   YAML config file (default: /etc/securonis/panel.yaml, optional)
  --once GROUP    Collect one group, print it and exit
  --json          Print snapshots as JSON lines
  --version       Show version information
  -h, --help      Show this help message

Groups:
  ` + strings.Join(views.Names(), ", ") + `

Environment Variables:
  SECURONIS_WORKERS           Concurrent probes (default: 4)
  SECURONIS_DEFAULT_TIMEOUT   Per-probe timeout, e.g. 2s (default: 2s)
  SECURONIS_COMMAND_TIMEOUT   Timeout for external commands (default: 1s)
  SECURONIS_NETWORK_TIMEOUT   Timeout for the public IP lookup (default: 3s)
  SECURONIS_LIVE_INTERVAL     Live usage refresh interval (default: 2s)
  SECURONIS_PROBE_TIMEOUTS    Per-probe overrides, e.g. public_ip=5s,gpu=3s
  SECURONIS_PUBLIC_IP_URL     Public IP lookup endpoint
  SECURONIS_HOST_ROOT         Root for /proc, /sys and /etc reads (default: /)
  SECURONIS_MIRROR_REDIS_URL  Mirror snapshots into Redis (default: disabled)
  SECURONIS_MIRROR_PREFIX     Mirror key prefix (default: securonis:panel)
  SECURONIS_MIRROR_TTL        Mirror key TTL (default: 30s)
  SECURONIS_LOG_LEVEL         debug, info, warn or error (default: info)

Examples:
  # Print the privacy tab once
  securonis-panel --once privacy

  # Run in a container with the host filesystem mounted at /host
  SECURONIS_HOST_ROOT=/host securonis-panel --json`
}
