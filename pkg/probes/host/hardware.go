package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
	pshost "github.com/shirou/gopsutil/v3/host"
)

// Sensor keys checked in order when no thermal zone exists
var temperatureSensors = []string{"coretemp", "k10temp", "acpitz"}

// PCI vendor ids of common integrated adapters
var gpuVendors = map[string]string{
	"0x8086": "Intel Graphics",
	"0x1002": "AMD Graphics",
	"0x10de": "NVIDIA Graphics",
}

func (h *prober) hardwareProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "temperature", Category: types.CategoryHardware, Run: h.temperature},
		{Name: "cpu_model", Category: types.CategoryHardware, Run: h.cpuinfoField("model name")},
		{Name: "cpu_vendor", Category: types.CategoryHardware, Run: h.cpuinfoField("vendor_id")},
		{Name: "cpu_cores", Category: types.CategoryHardware, Run: h.cpuCores},
		{Name: "cpu_cache", Category: types.CategoryHardware, Run: h.cpuCache},
		{Name: "cpu_freq", Category: types.CategoryHardware, Run: h.cpuFreq},
		{Name: "gpu", Category: types.CategoryHardware, Timeout: h.slowCommand(), Run: h.gpu},
	}
}

// temperature reads thermal_zone0, falling back to hwmon sensors
func (h *prober) temperature(ctx context.Context) (any, error) {
	raw, err := h.readTrimmed("sys/class/thermal/thermal_zone0/temp")
	if err == nil {
		milli, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return nil, perr
		}
		return Celsius(milli / 1000), nil
	}

	var unavailable *types.UnavailableError
	if !errors.As(err, &unavailable) || h.opts.Root != "/" {
		return nil, err
	}

	temps, serr := pshost.SensorsTemperaturesWithContext(ctx)
	if serr != nil && len(temps) == 0 {
		return nil, serr
	}
	for _, prefix := range temperatureSensors {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, prefix) && t.Temperature > 0 {
				return Celsius(t.Temperature), nil
			}
		}
	}
	return nil, types.NewUnavailable("no temperature sensor", nil)
}

// cpuinfoField returns a probe reading one key of the first processor in /proc/cpuinfo
func (h *prober) cpuinfoField(key string) probes.Func {
	return func(context.Context) (any, error) {
		content, err := h.readFile("proc/cpuinfo")
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(content, "\n") {
			k, v, ok := strings.Cut(line, ":")
			if ok && strings.TrimSpace(k) == key {
				return strings.TrimSpace(v), nil
			}
		}
		return nil, types.NewUnavailable(key+" not reported", nil)
	}
}

func (h *prober) cpuCores(ctx context.Context) (any, error) {
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		physical = logical
	}
	return CPUCores{Logical: logical, Physical: physical}, nil
}

// cpuCache lists cpu0 caches from sysfs
func (h *prober) cpuCache(context.Context) (any, error) {
	dirs, err := filepath.Glob(h.path("sys/devices/system/cpu/cpu0/cache/index*"))
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, types.NewUnavailable("no cache information", nil)
	}
	sort.Strings(dirs)

	var caches CPUCache
	for _, dir := range dirs {
		level, err := readInt(filepath.Join(dir, "level"))
		if err != nil {
			continue
		}
		size, err := os.ReadFile(filepath.Join(dir, "size"))
		if err != nil {
			continue
		}
		kind, _ := os.ReadFile(filepath.Join(dir, "type"))
		caches = append(caches, CacheLevel{
			Level: level,
			Type:  strings.TrimSpace(string(kind)),
			Size:  strings.TrimSpace(string(size)),
		})
	}
	if len(caches) == 0 {
		return nil, errors.New("unreadable cache information")
	}
	return caches, nil
}

// cpuFreq reads cpufreq in kHz, falling back to the gopsutil cpu info
func (h *prober) cpuFreq(ctx context.Context) (any, error) {
	base := "sys/devices/system/cpu/cpu0/cpufreq/"
	cur, err := readInt(h.path(base + "scaling_cur_freq"))
	if err == nil {
		freq := CPUFrequency{CurrentMHz: float64(cur) / 1000}
		if v, err := readInt(h.path(base + "cpuinfo_min_freq")); err == nil {
			freq.MinMHz = float64(v) / 1000
		}
		if v, err := readInt(h.path(base + "cpuinfo_max_freq")); err == nil {
			freq.MaxMHz = float64(v) / 1000
		}
		return freq, nil
	}

	if h.opts.Root != "/" {
		return nil, types.NewUnavailable("cpufreq not present", err)
	}
	infos, ierr := cpu.InfoWithContext(ctx)
	if ierr != nil {
		return nil, ierr
	}
	if len(infos) == 0 || infos[0].Mhz == 0 {
		return nil, types.NewUnavailable("cpu frequency not reported", nil)
	}
	return CPUFrequency{CurrentMHz: infos[0].Mhz}, nil
}

// gpu queries nvidia-smi, falling back to the DRM vendor id
func (h *prober) gpu(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "nvidia-smi", "--query-gpu=gpu_name,memory.total,memory.used,memory.free", "--format=csv,noheader")
	if err == nil {
		if g, perr := parseNvidiaSMI(out); perr == nil {
			return g, nil
		}
	}

	vendor, verr := h.readTrimmed("sys/class/drm/card0/device/vendor")
	if verr == nil {
		if name, ok := gpuVendors[strings.ToLower(vendor)]; ok {
			return GPU{Name: name}, nil
		}
		return GPU{Name: "Unknown (" + vendor + ")"}, nil
	}

	if err != nil {
		var unavailable *types.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, types.NewUnavailable("no gpu detected", nil)
		}
		return nil, err
	}
	return nil, verr
}

func parseNvidiaSMI(out string) (GPU, error) {
	line := firstLine(strings.TrimSpace(out))
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return GPU{}, errors.New("unexpected nvidia-smi output")
	}
	return GPU{
		Name:        strings.TrimSpace(parts[0]),
		MemoryTotal: strings.TrimSpace(parts[1]),
		MemoryUsed:  strings.TrimSpace(parts[2]),
		MemoryFree:  strings.TrimSpace(parts[3]),
	}, nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
