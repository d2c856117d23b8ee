package host

import (
	"context"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	"github.com/shirou/gopsutil/v3/disk"
)

func (h *prober) diskProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "disk_partitions", Category: types.CategoryDisk, Run: h.diskPartitions},
	}
}

// diskPartitions reports usage of every physical mount; unreadable mounts are skipped
func (h *prober) diskPartitions(ctx context.Context) (any, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	list := make(PartitionList, 0, len(parts))
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		list = append(list, Partition{
			Mount:   p.Mountpoint,
			Device:  p.Device,
			FSType:  p.Fstype,
			Total:   usage.Total,
			Used:    usage.Used,
			Free:    usage.Free,
			Percent: usage.UsedPercent,
		})
	}
	if len(list) == 0 {
		return nil, types.NewUnavailable("no readable partitions", nil)
	}
	return list, nil
}
