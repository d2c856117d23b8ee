// Package probes provides the probe contract and the registry of known probes.
package probes

import (
	"context"
	"time"

	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

// Func queries one external fact.
// It returns a value (string, number or structured record) or an error.
// Wrap errors with types.NewUnavailable when the feature does not exist on the host.
// The context carries the probe's deadline; honoring it is optional.
type Func func(ctx context.Context) (any, error)

// Probe is a single named unit of work
type Probe struct {
	Name     string
	Category types.Category
	Timeout  time.Duration // 0 means the collector's default
	Run      Func
}

// Validate checks the probe definition is complete
func (p Probe) Validate() error {
	if p.Name == "" {
		return &types.InvalidProbeError{Name: "<empty>", Message: "name is required"}
	}
	if p.Run == nil {
		return &types.InvalidProbeError{Name: p.Name, Message: "run function is required"}
	}
	if !p.Category.IsValid() {
		return &types.InvalidProbeError{Name: p.Name, Message: "unknown category " + string(p.Category)}
	}
	if p.Timeout < 0 {
		return &types.InvalidProbeError{Name: p.Name, Message: "timeout must be >= 0"}
	}
	return nil
}

// Static returns a Func that always yields v
func Static(v any) Func {
	return func(context.Context) (any, error) {
		return v, nil
	}
}
