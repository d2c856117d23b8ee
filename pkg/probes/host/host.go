// Package host implements the Linux probes behind the dashboard.
// File probes read under Options.Root so they can be pointed at a fake tree;
// command probes go through Options.Runner.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

const (
	defaultCommandTimeout = 1 * time.Second
	defaultNetworkTimeout = 3 * time.Second
	defaultPublicIPURL    = "https://api.ipify.org?format=json"
)

// Runner executes an external command and returns its stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, name string, args ...string) (string, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (string, error) {
	return f(ctx, name, args...)
}

// CommandError is returned when a command exits non-zero
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + firstLine(s)
	}
	return msg
}

// ExecRunner runs commands with os/exec.
// A missing binary is reported as unavailable rather than failed.
type ExecRunner struct{}

// Run executes name with args, bound to ctx
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return "", types.NewUnavailable(name+" not installed", err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return stdout.String(), &CommandError{
			Command:  name,
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", fmt.Errorf("%s: %w", name, err)
}

// Options configures the host probes
type Options struct {
	Root           string // filesystem root for /proc, /sys and /etc reads
	CommandTimeout time.Duration
	NetworkTimeout time.Duration
	PublicIPURL    string
	HTTPClient     *http.Client
	Runner         Runner
	Getenv         func(string) string
}

func (o Options) withDefaults() Options {
	if o.Root == "" {
		o.Root = "/"
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.NetworkTimeout <= 0 {
		o.NetworkTimeout = defaultNetworkTimeout
	}
	if o.PublicIPURL == "" {
		o.PublicIPURL = defaultPublicIPURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Runner == nil {
		o.Runner = ExecRunner{}
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	return o
}

// prober holds the resolved options shared by every probe function
type prober struct {
	opts Options
}

// Probes returns every host probe definition
func Probes(opts Options) []probes.Probe {
	h := &prober{opts: opts.withDefaults()}

	var all []probes.Probe
	all = append(all, h.systemProbes()...)
	all = append(all, h.hardwareProbes()...)
	all = append(all, h.privacyProbes()...)
	all = append(all, h.networkProbes()...)
	all = append(all, h.diskProbes()...)
	all = append(all, h.processProbes()...)
	all = append(all, h.serviceProbes()...)
	all = append(all, h.powerProbes()...)
	all = append(all, h.logProbes()...)
	return all
}

// NewRegistry creates a registry holding every host probe
func NewRegistry(opts Options) (*probes.Registry, error) {
	r := probes.NewRegistry()
	for _, p := range Probes(opts) {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// slowCommand is the timeout for commands that walk larger tables
func (h *prober) slowCommand() time.Duration {
	return 2 * h.opts.CommandTimeout
}

// path joins rel under the configured root
func (h *prober) path(rel string) string {
	return filepath.Join(h.opts.Root, rel)
}

// readFile reads a file under root; a missing file means the feature is absent
func (h *prober) readFile(rel string) (string, error) {
	data, err := os.ReadFile(h.path(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", types.NewUnavailable(rel+" not present", err)
		}
		return "", err
	}
	return string(data), nil
}

// readTrimmed reads a single-value pseudo-file
func (h *prober) readTrimmed(rel string) (string, error) {
	s, err := h.readFile(rel)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (h *prober) run(ctx context.Context, name string, args ...string) (string, error) {
	return h.opts.Runner.Run(ctx, name, args...)
}

// serviceState returns the systemd ActiveState of a unit.
// systemctl exits non-zero for inactive units but still prints the state.
func (h *prober) serviceState(ctx context.Context, unit string) (string, error) {
	out, err := h.run(ctx, "systemctl", "is-active", unit)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			if state := strings.TrimSpace(cmdErr.Stdout); state != "" {
				return state, nil
			}
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// env returns an environment variable or an unavailable error when unset
func (h *prober) env(key, reason string) (any, error) {
	if v := h.opts.Getenv(key); v != "" {
		return v, nil
	}
	return nil, types.NewUnavailable(reason, nil)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// nonEmptyLines splits s into trimmed, non-empty lines
func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
