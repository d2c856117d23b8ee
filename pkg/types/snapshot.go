package types

import (
	"encoding/json"
	"time"
)

// Snapshot is the result set of one collection cycle.
// It is immutable once returned; the next cycle produces a new one.
type Snapshot struct {
	requestedAt time.Time
	completedAt time.Time

	names   []string
	results map[string]Outcome
}

// NewSnapshot builds a snapshot from resolved outcomes.
// names fixes the iteration order and must cover every key of results.
func NewSnapshot(requestedAt, completedAt time.Time, names []string, results map[string]Outcome) *Snapshot {
	s := &Snapshot{
		requestedAt: requestedAt,
		completedAt: completedAt,
		names:       make([]string, len(names)),
		results:     make(map[string]Outcome, len(results)),
	}
	copy(s.names, names)
	for name, outcome := range results {
		s.results[name] = outcome
	}
	return s
}

// RequestedAt is when the collection was requested
func (s *Snapshot) RequestedAt() time.Time {
	return s.requestedAt
}

// CompletedAt is when the last outcome was recorded
func (s *Snapshot) CompletedAt() time.Time {
	return s.completedAt
}

// Get returns the outcome recorded for a metric
func (s *Snapshot) Get(name string) (Outcome, bool) {
	o, ok := s.results[name]
	return o, ok
}

// Display is a shortcut for Get(name).Display(); unknown names render as Placeholder
func (s *Snapshot) Display(name string) string {
	o, ok := s.results[name]
	if !ok {
		return Placeholder
	}
	return o.Display()
}

// Names returns the metric names in request order
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of metrics in the snapshot
func (s *Snapshot) Len() int {
	return len(s.results)
}

// Results returns a copy of the outcome table
func (s *Snapshot) Results() map[string]Outcome {
	out := make(map[string]Outcome, len(s.results))
	for name, outcome := range s.results {
		out[name] = outcome
	}
	return out
}

// Duration is the wall time of the cycle
func (s *Snapshot) Duration() time.Duration {
	return s.completedAt.Sub(s.requestedAt)
}

// CountByKind tallies outcomes per kind
func (s *Snapshot) CountByKind() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int, 4)
	for _, o := range s.results {
		counts[o.Kind]++
	}
	return counts
}

type snapshotJSON struct {
	RequestedAt int64              `json:"requestedAt"`
	CompletedAt int64              `json:"completedAt"`
	Names       []string           `json:"names"`
	Results     map[string]Outcome `json:"results"`
}

// MarshalJSON encodes timestamps as unix milliseconds
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		RequestedAt: s.requestedAt.UnixMilli(),
		CompletedAt: s.completedAt.UnixMilli(),
		Names:       s.names,
		Results:     s.results,
	})
}
