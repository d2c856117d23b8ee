package host

import (
	"context"
	"strings"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

func (h *prober) serviceProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "running_services", Category: types.CategoryService, Timeout: h.slowCommand(), Run: h.unitsInState("running")},
		{Name: "failed_services", Category: types.CategoryService, Timeout: h.opts.CommandTimeout, Run: h.unitsInState("failed")},
	}
}

// unitsInState returns a probe listing service units with the given sub-state
func (h *prober) unitsInState(state string) probes.Func {
	return func(ctx context.Context) (any, error) {
		out, err := h.run(ctx, "systemctl", "list-units", "--type=service", "--state="+state, "--no-legend", "--plain")
		if err != nil {
			return nil, err
		}
		return parseUnits(out), nil
	}
}

// parseUnits keeps the unit name column, dropping the .service suffix
func parseUnits(out string) ServiceList {
	units := ServiceList{}
	for _, line := range nonEmptyLines(out) {
		fields := strings.Fields(line)
		name := strings.TrimPrefix(fields[0], "●")
		if name == "" && len(fields) > 1 {
			name = fields[1]
		}
		units = append(units, strings.TrimSuffix(name, ".service"))
	}
	return units
}
