// Package types defines the result model shared by the collection core.
// Outcomes and snapshots are the only values that cross the presentation boundary.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category groups probes by the part of the host they describe
type Category string

const (
	CategorySystem   Category = "system"
	CategoryHardware Category = "hardware"
	CategoryNetwork  Category = "network"
	CategoryPrivacy  Category = "privacy"
	CategoryDisk     Category = "disk"
	CategoryProcess  Category = "process"
	CategoryService  Category = "service"
	CategoryPower    Category = "power"
	CategoryLog      Category = "log"
)

// Categories lists every known category in dashboard order
var Categories = []Category{
	CategorySystem,
	CategoryHardware,
	CategoryPrivacy,
	CategoryNetwork,
	CategoryDisk,
	CategoryProcess,
	CategoryService,
	CategoryLog,
	CategoryPower,
}

// IsValid checks if the category is one of the known categories
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// OutcomeKind tags which variant an Outcome holds
type OutcomeKind string

const (
	KindValue       OutcomeKind = "value"
	KindUnavailable OutcomeKind = "unavailable"
	KindTimedOut    OutcomeKind = "timed_out"
	KindFailed      OutcomeKind = "failed"
)

// Placeholder is rendered for every outcome that carries no value
const Placeholder = "N/A"

// Outcome is the result of exactly one probe execution.
// Only the fields matching Kind are meaningful.
type Outcome struct {
	Kind    OutcomeKind
	Value   any           // KindValue
	Reason  string        // KindUnavailable
	Err     error         // KindFailed
	Elapsed time.Duration // time from dispatch to resolution
}

// Value creates a successful outcome
func Value(v any) Outcome {
	return Outcome{Kind: KindValue, Value: v}
}

// Unavailable creates an outcome for a feature the host does not have
func Unavailable(reason string) Outcome {
	return Outcome{Kind: KindUnavailable, Reason: reason}
}

// TimedOut creates an outcome for a probe that exceeded its timeout
func TimedOut() Outcome {
	return Outcome{Kind: KindTimedOut}
}

// Failed creates an outcome for a probe whose underlying call errored
func Failed(cause error) Outcome {
	return Outcome{Kind: KindFailed, Err: cause}
}

// OK reports whether the outcome carries a value
func (o Outcome) OK() bool {
	return o.Kind == KindValue
}

// Display renders the outcome for a presentation layer.
// Non-value outcomes always render as Placeholder.
func (o Outcome) Display() string {
	if o.Kind != KindValue {
		return Placeholder
	}
	switch v := o.Value.(type) {
	case nil:
		return Placeholder
	case string:
		if v == "" {
			return Placeholder
		}
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Detail describes why a non-value outcome has no value
func (o Outcome) Detail() string {
	switch o.Kind {
	case KindUnavailable:
		return o.Reason
	case KindTimedOut:
		return "timed out"
	case KindFailed:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "failed"
	}
	return ""
}

type outcomeJSON struct {
	Kind      OutcomeKind `json:"kind"`
	Value     any         `json:"value,omitempty"`
	Display   string      `json:"display"`
	Detail    string      `json:"detail,omitempty"`
	ElapsedMs int64       `json:"elapsedMs"`
}

// MarshalJSON flattens the failure cause into a message
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Kind:      o.Kind,
		Value:     o.Value,
		Display:   o.Display(),
		Detail:    o.Detail(),
		ElapsedMs: o.Elapsed.Milliseconds(),
	})
}
