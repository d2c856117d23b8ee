// Package views defines the metric groups behind each dashboard tab.
// Groups are static tables: a group is only a named, ordered list of metric names.
package views

// Group is a named, ordered set of metric names collected together
type Group struct {
	Name    string
	Title   string
	Metrics []string
}

// Group names
const (
	System    = "system"
	Hardware  = "hardware"
	Privacy   = "privacy"
	Network   = "network"
	Disk      = "disk"
	Processes = "processes"
	Services  = "services"
	Logs      = "logs"
	Power     = "power"
	Live      = "live"
)

var groups = []Group{
	{
		Name:  System,
		Title: "System Info",
		Metrics: []string{
			"hostname", "os", "kernel", "uptime", "cpu_usage", "ram", "swap",
			"temperature", "load_avg", "battery", "last_boot", "system_time",
			"timezone", "desktop_environment", "display_manager", "shell",
			"runtime_version", "system_language",
		},
	},
	{
		Name:  Hardware,
		Title: "Hardware Info",
		Metrics: []string{
			"cpu_model", "cpu_vendor", "cpu_cores", "cpu_cache", "cpu_freq", "temperature", "gpu",
		},
	},
	{
		Name:  Privacy,
		Title: "Privacy Status",
		Metrics: []string{
			"firewall", "vpn", "tor", "dns", "public_ip", "system_updates",
			"antivirus", "selinux", "apparmor", "disk_encryption", "secure_boot",
		},
	},
	{
		Name:  Network,
		Title: "Network Info",
		Metrics: []string{
			"ip_address", "mac_address", "net_download", "net_upload", "net_packets", "net_interfaces",
		},
	},
	{
		Name:    Disk,
		Title:   "Disk Info",
		Metrics: []string{"disk_partitions"},
	},
	{
		Name:    Processes,
		Title:   "Processes",
		Metrics: []string{"process_count", "top_processes"},
	},
	{
		Name:    Services,
		Title:   "Services",
		Metrics: []string{"running_services", "failed_services"},
	},
	{
		Name:    Logs,
		Title:   "Logs",
		Metrics: []string{"journal_errors", "kernel_warnings"},
	},
	{
		Name:    Power,
		Title:   "Power",
		Metrics: []string{"battery", "ac_adapter"},
	},
	{
		Name:    Live,
		Title:   "Live Usage",
		Metrics: []string{"cpu_usage", "ram", "swap", "load_avg", "net_download", "net_upload"},
	},
}

// All returns every group in dashboard order
func All() []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = g.clone()
	}
	return out
}

// Lookup returns the group with the given name
func Lookup(name string) (Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g.clone(), true
		}
	}
	return Group{}, false
}

// Names returns every group name in dashboard order
func Names() []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name
	}
	return out
}

func (g Group) clone() Group {
	g.Metrics = append([]string(nil), g.Metrics...)
	return g
}
