package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// vpnInterfaces are interface names that indicate an active tunnel
var vpnInterfaces = []string{"tun0", "tun1", "wg0", "ppp0"}

// dnsProviders maps well-known resolvers to their operator, checked in order
var dnsProviders = []struct {
	IP       string
	Provider string
}{
	{"1.1.1.1", "Cloudflare"},
	{"8.8.8.8", "Google"},
	{"9.9.9.9", "Quad9"},
	{"208.67.222.222", "OpenDNS"},
}

func (h *prober) privacyProbes() []probes.Probe {
	cmd := h.opts.CommandTimeout
	return []probes.Probe{
		{Name: "firewall", Category: types.CategoryPrivacy, Timeout: 2 * cmd, Run: h.firewall},
		{Name: "vpn", Category: types.CategoryPrivacy, Timeout: cmd, Run: h.vpn},
		{Name: "tor", Category: types.CategoryPrivacy, Timeout: cmd, Run: h.serviceStatus("tor", "Active (Service Running)")},
		{Name: "dns", Category: types.CategoryPrivacy, Run: h.dns},
		{Name: "public_ip", Category: types.CategoryPrivacy, Timeout: h.opts.NetworkTimeout, Run: h.publicIP},
		{Name: "system_updates", Category: types.CategoryPrivacy, Timeout: h.slowCommand(), Run: h.systemUpdates},
		{Name: "antivirus", Category: types.CategoryPrivacy, Timeout: cmd, Run: h.serviceStatus("clamav-daemon", "Active (ClamAV)")},
		{Name: "selinux", Category: types.CategoryPrivacy, Timeout: cmd, Run: h.selinux},
		{Name: "apparmor", Category: types.CategoryPrivacy, Run: h.apparmor},
		{Name: "disk_encryption", Category: types.CategoryPrivacy, Timeout: cmd, Run: h.diskEncryption},
		{Name: "secure_boot", Category: types.CategoryPrivacy, Timeout: cmd, Run: h.secureBoot},
	}
}

// firewall checks ufw first, then iptables
func (h *prober) firewall(ctx context.Context) (any, error) {
	out, ufwErr := h.run(ctx, "ufw", "status")
	if ufwErr == nil {
		if strings.Contains(out, "Status: active") {
			return "Active", nil
		}
	}

	out, iptErr := h.run(ctx, "iptables", "-L", "-n")
	if iptErr == nil {
		if hasFirewallRules(out) {
			return "Active (iptables)", nil
		}
		return "Inactive", nil
	}

	if ufwErr == nil {
		return "Inactive", nil
	}

	var ufwMissing, iptMissing *types.UnavailableError
	if errors.As(ufwErr, &ufwMissing) && errors.As(iptErr, &iptMissing) {
		return nil, types.NewUnavailable("no firewall tool installed", nil)
	}
	if !errors.As(iptErr, &iptMissing) {
		return nil, iptErr
	}
	return nil, ufwErr
}

// hasFirewallRules reports whether iptables -L lists any rule or a DROP policy
func hasFirewallRules(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "Chain "):
			if strings.Contains(line, "policy DROP") || strings.Contains(line, "policy REJECT") {
				return true
			}
		case strings.HasPrefix(line, "target"):
		default:
			return true
		}
	}
	return false
}

// vpn looks for an up tunnel interface, then the OpenVPN service
func (h *prober) vpn(ctx context.Context) (any, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		for _, name := range vpnInterfaces {
			if iface.Name == name && hasFlag(iface.Flags, "up") {
				return "Active", nil
			}
		}
	}

	state, err := h.serviceState(ctx, "openvpn")
	if err == nil && state == "active" {
		return "Active (OpenVPN)", nil
	}
	return "Inactive", nil
}

// serviceStatus returns a probe reporting whether a systemd unit is running
func (h *prober) serviceStatus(unit, activeLabel string) probes.Func {
	return func(ctx context.Context) (any, error) {
		state, err := h.serviceState(ctx, unit)
		if err != nil {
			return nil, err
		}
		if state == "active" {
			return activeLabel, nil
		}
		return "Inactive", nil
	}
}

// dns names the resolver operator from resolv.conf nameserver lines
func (h *prober) dns(context.Context) (any, error) {
	content, err := h.readFile("etc/resolv.conf")
	if err != nil {
		return nil, err
	}

	var servers []string
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "nameserver" {
			servers = append(servers, fields[1])
		}
	}

	for _, p := range dnsProviders {
		for _, s := range servers {
			if s == p.IP {
				return "Using " + p.Provider, nil
			}
		}
	}
	return "Using Default DNS", nil
}

type publicIPResponse struct {
	IP string `json:"ip"`
}

// publicIP asks the lookup service for this host's public address
func (h *prober) publicIP(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.PublicIPURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("public ip request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("public ip lookup returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body publicIPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode public ip response: %w", err)
	}
	if body.IP == "" {
		return nil, errors.New("public ip response has no ip")
	}
	return body.IP, nil
}

// systemUpdates counts upgradable apt packages
func (h *prober) systemUpdates(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "apt", "list", "--upgradable")
	if err != nil {
		return nil, err
	}

	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "upgradable from") {
			count++
		}
	}
	if count == 0 {
		return "Up to Date", nil
	}
	return fmt.Sprintf("Updates Available (%d)", count), nil
}

// selinux reports the getenforce mode; Disabled is a value, a missing tool is not
func (h *prober) selinux(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "getenforce")
	if err != nil {
		var unavailable *types.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, types.NewUnavailable("selinux not installed", err)
		}
		return nil, err
	}
	mode := strings.TrimSpace(out)
	if mode == "" {
		return nil, errors.New("getenforce printed nothing")
	}
	return mode, nil
}

// apparmor reads the module parameter instead of aa-status, which needs root
func (h *prober) apparmor(context.Context) (any, error) {
	enabled, err := h.readTrimmed("sys/module/apparmor/parameters/enabled")
	if err != nil {
		var unavailable *types.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, types.NewUnavailable("apparmor module not loaded", err)
		}
		return nil, err
	}
	if enabled == "Y" {
		return "Active", nil
	}
	return "Inactive", nil
}

func (h *prober) diskEncryption(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "lsblk", "-f")
	if err != nil {
		return nil, err
	}
	if strings.Contains(out, "crypto_LUKS") {
		return "Enabled", nil
	}
	return "Not Detected", nil
}

// secureBoot asks mokutil; legacy BIOS hosts report unsupported EFI variables
func (h *prober) secureBoot(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "mokutil", "--sb-state")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr+cmdErr.Stdout, "not supported") {
			return nil, types.NewUnavailable("EFI variables not supported", err)
		}
		return nil, err
	}
	if strings.Contains(out, "SecureBoot enabled") {
		return "Enabled", nil
	}
	return "Disabled", nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
