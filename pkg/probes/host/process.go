package host

import (
	"context"
	"sort"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	topProcessCount   = 5
	topProcessTimeout = 3 * time.Second
)

func (h *prober) processProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "top_processes", Category: types.CategoryProcess, Timeout: topProcessTimeout, Run: h.topProcesses},
		{Name: "process_count", Category: types.CategoryProcess, Run: h.processCount},
	}
}

// topProcesses lists the busiest processes; ones that exit mid-scan are skipped
func (h *prober) topProcesses(ctx context.Context) (any, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	list := make(ProcessList, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		memPct, _ := p.MemoryPercentWithContext(ctx)
		list = append(list, ProcessInfo{PID: p.Pid, Name: name, CPUPercent: cpuPct, MemPercent: memPct})
	}
	return topByCPU(list, topProcessCount), nil
}

// topByCPU sorts by CPU descending, PID ascending on ties, and keeps n entries
func topByCPU(list ProcessList, n int) ProcessList {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CPUPercent != list[j].CPUPercent {
			return list[i].CPUPercent > list[j].CPUPercent
		}
		return list[i].PID < list[j].PID
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}

func (h *prober) processCount(ctx context.Context) (any, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return len(pids), nil
}
