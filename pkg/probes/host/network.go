package host

import (
	"context"
	"net"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// routeProbeAddr is dialed over UDP to learn the outbound address; no packet is sent
const routeProbeAddr = "8.8.8.8:80"

func (h *prober) networkProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "ip_address", Category: types.CategoryNetwork, Run: h.ipAddress},
		{Name: "mac_address", Category: types.CategoryNetwork, Run: h.macAddress},
		{Name: "net_download", Category: types.CategoryNetwork, Run: h.netBytes(true)},
		{Name: "net_upload", Category: types.CategoryNetwork, Run: h.netBytes(false)},
		{Name: "net_packets", Category: types.CategoryNetwork, Run: h.netPackets},
		{Name: "net_interfaces", Category: types.CategoryNetwork, Run: h.netInterfaces},
	}
}

func (h *prober) ipAddress(ctx context.Context) (any, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", routeProbeAddr)
	if err != nil {
		return nil, types.NewUnavailable("no route to the internet", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return conn.LocalAddr().String(), nil
	}
	return addr.IP.String(), nil
}

// macAddress returns the hardware address of the first non-loopback interface
func (h *prober) macAddress(ctx context.Context) (any, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") || iface.HardwareAddr == "" {
			continue
		}
		return iface.HardwareAddr, nil
	}
	return nil, types.NewUnavailable("no hardware address", nil)
}

func (h *prober) totals(ctx context.Context) (psnet.IOCountersStat, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return psnet.IOCountersStat{}, err
	}
	if len(counters) == 0 {
		return psnet.IOCountersStat{}, types.NewUnavailable("no network counters", nil)
	}
	return counters[0], nil
}

// netBytes reports total bytes received (download) or sent since boot
func (h *prober) netBytes(download bool) probes.Func {
	return func(ctx context.Context) (any, error) {
		total, err := h.totals(ctx)
		if err != nil {
			return nil, err
		}
		if download {
			return Bytes(total.BytesRecv), nil
		}
		return Bytes(total.BytesSent), nil
	}
}

func (h *prober) netPackets(ctx context.Context) (any, error) {
	total, err := h.totals(ctx)
	if err != nil {
		return nil, err
	}
	return Packets{Recv: total.PacketsRecv, Sent: total.PacketsSent}, nil
}

func (h *prober) netInterfaces(ctx context.Context) (any, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	list := make(InterfaceList, 0, len(ifaces))
	for _, iface := range ifaces {
		list = append(list, InterfaceStatus{Name: iface.Name, Up: hasFlag(iface.Flags, "up")})
	}
	if len(list) == 0 {
		return nil, types.NewUnavailable("no network interfaces", nil)
	}
	return list, nil
}
