package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
	pshost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// cpuSampleWindow is how long cpu_usage measures busy time
const cpuSampleWindow = 250 * time.Millisecond

const clockLayout = "2006-01-02 15:04:05"

func (h *prober) systemProbes() []probes.Probe {
	cmd := h.opts.CommandTimeout
	return []probes.Probe{
		{Name: "hostname", Category: types.CategorySystem, Run: h.hostname},
		{Name: "os", Category: types.CategorySystem, Run: h.osRelease},
		{Name: "kernel", Category: types.CategorySystem, Run: h.kernel},
		{Name: "uptime", Category: types.CategorySystem, Run: h.uptime},
		{Name: "last_boot", Category: types.CategorySystem, Run: h.lastBoot},
		{Name: "system_time", Category: types.CategorySystem, Run: h.systemTime},
		{Name: "timezone", Category: types.CategorySystem, Timeout: cmd, Run: h.timezone},
		{Name: "desktop_environment", Category: types.CategorySystem, Run: h.desktopEnvironment},
		{Name: "display_manager", Category: types.CategorySystem, Timeout: cmd, Run: h.displayManager},
		{Name: "shell", Category: types.CategorySystem, Run: h.shell},
		{Name: "system_language", Category: types.CategorySystem, Run: h.systemLanguage},
		{Name: "runtime_version", Category: types.CategorySystem, Run: probes.Static(runtime.Version())},
		{Name: "cpu_usage", Category: types.CategorySystem, Run: h.cpuUsage},
		{Name: "ram", Category: types.CategorySystem, Run: h.ram},
		{Name: "swap", Category: types.CategorySystem, Run: h.swap},
		{Name: "load_avg", Category: types.CategorySystem, Run: h.loadAvg},
	}
}

func (h *prober) hostname(context.Context) (any, error) {
	return os.Hostname()
}

// osRelease renders NAME and VERSION from os-release
func (h *prober) osRelease(ctx context.Context) (any, error) {
	content, err := h.readFile("etc/os-release")
	if err != nil {
		var unavailable *types.UnavailableError
		if errors.As(err, &unavailable) && h.opts.Root == "/" {
			platform, _, version, perr := pshost.PlatformInformationWithContext(ctx)
			if perr == nil && platform != "" {
				return strings.TrimSpace(platform + " " + version), nil
			}
		}
		return nil, err
	}

	fields := parseKeyValues(content, "=")
	name := strings.Trim(fields["NAME"], `"`)
	if name == "" {
		name = "Unknown"
	}
	version := strings.Trim(fields["VERSION"], `"`)
	return strings.TrimSpace(name + " " + version), nil
}

func (h *prober) kernel(ctx context.Context) (any, error) {
	return pshost.KernelVersionWithContext(ctx)
}

func (h *prober) uptime(ctx context.Context) (any, error) {
	secs, err := pshost.UptimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return time.Duration(secs) * time.Second, nil
}

func (h *prober) lastBoot(ctx context.Context) (any, error) {
	boot, err := pshost.BootTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return time.Unix(int64(boot), 0).Format(clockLayout), nil
}

func (h *prober) systemTime(context.Context) (any, error) {
	return time.Now().Format(clockLayout), nil
}

// timezone asks timedatectl, falling back to the /etc/localtime symlink
func (h *prober) timezone(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "timedatectl", "show", "--property=Timezone")
	if err == nil {
		if _, tz, ok := strings.Cut(strings.TrimSpace(out), "="); ok && tz != "" {
			return tz, nil
		}
	}

	target, lerr := os.Readlink(h.path("etc/localtime"))
	if lerr == nil {
		if _, tz, ok := strings.Cut(target, "zoneinfo/"); ok {
			return filepath.Clean(tz), nil
		}
	}

	if err != nil {
		return nil, err
	}
	return nil, types.NewUnavailable("timezone not configured", nil)
}

func (h *prober) desktopEnvironment(context.Context) (any, error) {
	return h.env("XDG_CURRENT_DESKTOP", "no desktop session")
}

func (h *prober) shell(context.Context) (any, error) {
	return h.env("SHELL", "SHELL not set")
}

func (h *prober) systemLanguage(context.Context) (any, error) {
	return h.env("LANG", "LANG not set")
}

// displayManager reports the unit behind display-manager.service
func (h *prober) displayManager(ctx context.Context) (any, error) {
	state, err := h.serviceState(ctx, "display-manager.service")
	if err != nil {
		return nil, err
	}
	if state != "active" {
		return "Inactive", nil
	}

	id, err := h.run(ctx, "systemctl", "show", "--property=Id", "--value", "display-manager.service")
	if err != nil {
		return "Active", nil
	}
	return strings.TrimSuffix(strings.TrimSpace(id), ".service"), nil
}

func (h *prober) cpuUsage(ctx context.Context) (any, error) {
	pct, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return nil, err
	}
	if len(pct) == 0 {
		return nil, types.NewUnavailable("no cpu statistics", nil)
	}
	return Percent(pct[0]), nil
}

func (h *prober) ram(ctx context.Context) (any, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return MemoryUsage{Used: v.Used, Total: v.Total, Percent: v.UsedPercent}, nil
}

func (h *prober) swap(ctx context.Context) (any, error) {
	s, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if s.Total == 0 {
		return nil, types.NewUnavailable("no swap configured", nil)
	}
	return MemoryUsage{Used: s.Used, Total: s.Total, Percent: s.UsedPercent}, nil
}

// loadAvg parses /proc/loadavg, falling back to gopsutil on the live host
func (h *prober) loadAvg(ctx context.Context) (any, error) {
	content, err := h.readFile("proc/loadavg")
	if err != nil {
		var unavailable *types.UnavailableError
		if errors.As(err, &unavailable) && h.opts.Root == "/" {
			avg, lerr := load.AvgWithContext(ctx)
			if lerr == nil {
				return LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
			}
		}
		return nil, err
	}
	return parseLoadAvg(content)
}

func parseLoadAvg(content string) (LoadAverage, error) {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return LoadAverage{}, errors.New("malformed loadavg")
	}

	var vals [3]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return LoadAverage{}, err
		}
		vals[i] = v
	}
	return LoadAverage{Load1: vals[0], Load5: vals[1], Load15: vals[2]}, nil
}

// parseKeyValues splits "key<sep>value" lines; later keys win
func parseKeyValues(content, sep string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
