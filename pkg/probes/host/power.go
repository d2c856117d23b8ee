package host

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

const powerSupplyDir = "sys/class/power_supply"

func (h *prober) powerProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "battery", Category: types.CategoryPower, Run: h.battery},
		{Name: "ac_adapter", Category: types.CategoryPower, Run: h.acAdapter},
	}
}

// supplies returns the power_supply entries matching the patterns, sorted by name
func (h *prober) supplies(patterns ...string) []string {
	var names []string
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(h.path(filepath.Join(powerSupplyDir, pattern)))
		for _, m := range matches {
			names = append(names, filepath.Base(m))
		}
	}
	sort.Strings(names)
	return names
}

func (h *prober) battery(context.Context) (any, error) {
	batteries := h.supplies("BAT*")
	if len(batteries) == 0 {
		return nil, types.NewUnavailable("no battery", nil)
	}
	dir := filepath.Join(powerSupplyDir, batteries[0])

	raw, err := h.readTrimmed(filepath.Join(dir, "capacity"))
	if err != nil {
		return nil, err
	}
	capacity, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	status, err := h.readTrimmed(filepath.Join(dir, "status"))
	if err != nil {
		status = "Unknown"
	}
	return Battery{Percent: capacity, Status: status}, nil
}

func (h *prober) acAdapter(context.Context) (any, error) {
	adapters := h.supplies("AC*", "ADP*")
	if len(adapters) == 0 {
		return nil, types.NewUnavailable("no AC adapter", nil)
	}

	online, err := h.readTrimmed(filepath.Join(powerSupplyDir, adapters[0], "online"))
	if err != nil {
		return nil, err
	}
	if online == "1" {
		return "Connected", nil
	}
	return "Disconnected", nil
}
