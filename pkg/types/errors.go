package types

import "errors"

var (
	// ErrRegistryFrozen is returned when registering after the registry became read-only
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrShutdown is returned by a collector that no longer accepts work
	ErrShutdown = errors.New("collector is shut down")
)

// UnknownMetricError is returned when a metric name was never registered
type UnknownMetricError struct {
	Name       string
	Suggestion string // closest registered name, if any
}

func (e *UnknownMetricError) Error() string {
	msg := "unknown metric: " + e.Name
	if e.Suggestion != "" {
		msg += " (did you mean " + e.Suggestion + "?)"
	}
	return msg
}

// DuplicateNameError is returned when a probe name is registered twice
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return "duplicate probe name: " + e.Name
}

// InvalidProbeError is returned when a probe definition is incomplete
type InvalidProbeError struct {
	Name    string
	Message string
}

func (e *InvalidProbeError) Error() string {
	return "invalid probe " + e.Name + ": " + e.Message
}

// UnavailableError marks a probe error as "feature absent on this host".
// The collector turns it into an Unavailable outcome instead of Failed.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return "unavailable: " + e.Reason + ": " + e.Err.Error()
	}
	return "unavailable: " + e.Reason
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// NewUnavailable wraps err as an UnavailableError
func NewUnavailable(reason string, err error) error {
	return &UnavailableError{Reason: reason, Err: err}
}
