package host

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Percent is a 0-100 usage figure
type Percent float64

func (p Percent) String() string {
	return fmt.Sprintf("%.1f%%", float64(p))
}

// Bytes is a byte count rendered in IEC units
type Bytes uint64

func (b Bytes) String() string {
	return humanize.IBytes(uint64(b))
}

// Celsius is a temperature reading
type Celsius float64

func (c Celsius) String() string {
	return fmt.Sprintf("%.1f°C", float64(c))
}

// MemoryUsage describes RAM or swap
type MemoryUsage struct {
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

func (m MemoryUsage) String() string {
	return fmt.Sprintf("%s / %s (%.1f%%)", humanize.IBytes(m.Used), humanize.IBytes(m.Total), m.Percent)
}

// LoadAverage holds the 1, 5 and 15 minute load
type LoadAverage struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

func (l LoadAverage) String() string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", l.Load1, l.Load5, l.Load15)
}

// CPUCores counts logical and physical cores
type CPUCores struct {
	Logical  int `json:"logical"`
	Physical int `json:"physical"`
}

func (c CPUCores) String() string {
	return fmt.Sprintf("%d (%d physical)", c.Logical, c.Physical)
}

// CPUFrequency is in MHz; zero fields are unknown
type CPUFrequency struct {
	CurrentMHz float64 `json:"currentMHz"`
	MinMHz     float64 `json:"minMHz"`
	MaxMHz     float64 `json:"maxMHz"`
}

func (f CPUFrequency) String() string {
	s := fmt.Sprintf("%.0fMHz", f.CurrentMHz)
	if f.MaxMHz > 0 {
		s += fmt.Sprintf(" (min %.0fMHz, max %.0fMHz)", f.MinMHz, f.MaxMHz)
	}
	return s
}

// CacheLevel is one CPU cache as described by sysfs
type CacheLevel struct {
	Level int    `json:"level"`
	Type  string `json:"type"`
	Size  string `json:"size"`
}

// Label names the cache the way lscpu does: L1d, L1i, L2, L3
func (c CacheLevel) Label() string {
	label := fmt.Sprintf("L%d", c.Level)
	switch c.Type {
	case "Data":
		label += "d"
	case "Instruction":
		label += "i"
	}
	return label
}

// CPUCache lists the caches of cpu0
type CPUCache []CacheLevel

func (c CPUCache) String() string {
	parts := make([]string, len(c))
	for i, level := range c {
		parts[i] = level.Label() + ": " + level.Size
	}
	return strings.Join(parts, ", ")
}

// GPU describes the primary graphics adapter
type GPU struct {
	Name        string `json:"name"`
	MemoryTotal string `json:"memoryTotal,omitempty"`
	MemoryUsed  string `json:"memoryUsed,omitempty"`
	MemoryFree  string `json:"memoryFree,omitempty"`
}

func (g GPU) String() string {
	if g.MemoryTotal == "" {
		return g.Name
	}
	return fmt.Sprintf("%s (%s used of %s)", g.Name, g.MemoryUsed, g.MemoryTotal)
}

// Packets counts received and sent packets
type Packets struct {
	Recv uint64 `json:"recv"`
	Sent uint64 `json:"sent"`
}

func (p Packets) String() string {
	return "↓" + humanize.Comma(int64(p.Recv)) + " ↑" + humanize.Comma(int64(p.Sent))
}

// InterfaceStatus is the link state of one network interface
type InterfaceStatus struct {
	Name string `json:"name"`
	Up   bool   `json:"up"`
}

// InterfaceList is rendered one interface per line
type InterfaceList []InterfaceStatus

func (l InterfaceList) String() string {
	lines := make([]string, len(l))
	for i, iface := range l {
		state := "Down"
		if iface.Up {
			state = "Up"
		}
		lines[i] = iface.Name + ": " + state
	}
	return strings.Join(lines, "\n")
}

// Partition is the usage of one mounted filesystem
type Partition struct {
	Mount   string  `json:"mount"`
	Device  string  `json:"device"`
	FSType  string  `json:"fstype"`
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

func (p Partition) String() string {
	return fmt.Sprintf("%s: %.1f%% of %s (Free: %s)", p.Mount, p.Percent, humanize.IBytes(p.Total), humanize.IBytes(p.Free))
}

// PartitionList is rendered one partition per line
type PartitionList []Partition

func (l PartitionList) String() string {
	lines := make([]string, len(l))
	for i, p := range l {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n")
}

// ProcessInfo is one entry of the process table
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float32 `json:"memPercent"`
}

// ProcessList is rendered one process per line
type ProcessList []ProcessInfo

func (l ProcessList) String() string {
	lines := make([]string, len(l))
	for i, p := range l {
		lines[i] = fmt.Sprintf("%s (%d): %.1f%% CPU, %.1f%% MEM", p.Name, p.PID, p.CPUPercent, p.MemPercent)
	}
	return strings.Join(lines, "\n")
}

// ServiceList holds systemd unit names
type ServiceList []string

func (l ServiceList) String() string {
	if len(l) == 0 {
		return "None"
	}
	return fmt.Sprintf("%d: %s", len(l), strings.Join(l, ", "))
}

// Battery is the state of the first battery
type Battery struct {
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

func (b Battery) String() string {
	return fmt.Sprintf("%d%% (%s)", b.Percent, b.Status)
}

// LogLines holds the most recent log lines, oldest first
type LogLines []string

func (l LogLines) String() string {
	if len(l) == 0 {
		return "No entries"
	}
	return strings.Join(l, "\n")
}
