package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type bytesValue uint64

func (b bytesValue) String() string { return "42 B" }

func TestCategoryIsValid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		expected bool
	}{
		{"system valid", CategorySystem, true},
		{"power valid", CategoryPower, true},
		{"log valid", CategoryLog, true},
		{"unknown invalid", Category("gui"), false},
		{"empty invalid", Category(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.category.IsValid(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestOutcomeDisplay(t *testing.T) {
	tests := []struct {
		name     string
		outcome  Outcome
		expected string
	}{
		{"string value", Value("Active"), "Active"},
		{"empty string value", Value(""), Placeholder},
		{"nil value", Value(nil), Placeholder},
		{"number value", Value(3), "3"},
		{"stringer value", Value(bytesValue(42)), "42 B"},
		{"unavailable", Unavailable("no battery"), Placeholder},
		{"timed out", TimedOut(), Placeholder},
		{"failed", Failed(errors.New("exit status 1")), Placeholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Display(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestOutcomeDetail(t *testing.T) {
	if d := Unavailable("no battery").Detail(); d != "no battery" {
		t.Errorf("Expected reason as detail, got %q", d)
	}
	if d := TimedOut().Detail(); d != "timed out" {
		t.Errorf("Expected timed out detail, got %q", d)
	}
	if d := Failed(errors.New("boom")).Detail(); d != "boom" {
		t.Errorf("Expected cause as detail, got %q", d)
	}
	if d := Value(1).Detail(); d != "" {
		t.Errorf("Expected empty detail for value, got %q", d)
	}
}

func TestSnapshotIsolatedFromInput(t *testing.T) {
	now := time.Now()
	names := []string{"a", "b"}
	results := map[string]Outcome{"a": Value(1), "b": TimedOut()}

	snap := NewSnapshot(now, now.Add(time.Second), names, results)

	// Mutating the inputs must not leak into the snapshot
	names[0] = "z"
	results["a"] = Failed(errors.New("mutated"))
	delete(results, "b")

	if got := snap.Names(); got[0] != "a" || len(got) != 2 {
		t.Errorf("Expected names [a b], got %v", got)
	}
	if o, _ := snap.Get("a"); !o.OK() {
		t.Errorf("Expected a to still be a value, got %v", o.Kind)
	}
	if _, ok := snap.Get("b"); !ok {
		t.Error("Expected b to still be present")
	}

	// Mutating the returned copy must not leak either
	copied := snap.Results()
	delete(copied, "a")
	if snap.Len() != 2 {
		t.Errorf("Expected 2 results, got %d", snap.Len())
	}

	if !snap.RequestedAt().Equal(now) || !snap.CompletedAt().Equal(now.Add(time.Second)) {
		t.Errorf("Expected timestamps %v..%v, got %v..%v", now, now.Add(time.Second), snap.RequestedAt(), snap.CompletedAt())
	}
	if snap.Duration() != time.Second {
		t.Errorf("Expected duration 1s, got %v", snap.Duration())
	}
	if snap.Display("missing") != Placeholder {
		t.Error("Expected placeholder for unknown name")
	}
}

func TestSnapshotMarshalJSON(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	snap := NewSnapshot(at, at.Add(250*time.Millisecond), []string{"tor", "vpn"}, map[string]Outcome{
		"tor": Value("Inactive"),
		"vpn": Failed(errors.New("exit status 3")),
	})

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		RequestedAt int64 `json:"requestedAt"`
		CompletedAt int64 `json:"completedAt"`
		Results     map[string]struct {
			Kind    string `json:"kind"`
			Display string `json:"display"`
			Detail  string `json:"detail"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.CompletedAt-decoded.RequestedAt != 250 {
		t.Errorf("Expected 250ms between timestamps, got %d", decoded.CompletedAt-decoded.RequestedAt)
	}
	if decoded.Results["vpn"].Kind != string(KindFailed) || decoded.Results["vpn"].Detail != "exit status 3" {
		t.Errorf("Unexpected vpn entry: %+v", decoded.Results["vpn"])
	}
	if decoded.Results["vpn"].Display != Placeholder {
		t.Errorf("Expected placeholder display, got %q", decoded.Results["vpn"].Display)
	}
}

func TestUnknownMetricErrorMessage(t *testing.T) {
	err := &UnknownMetricError{Name: "firewal", Suggestion: "firewall"}
	if !strings.Contains(err.Error(), "did you mean firewall") {
		t.Errorf("Expected suggestion in message, got %q", err.Error())
	}

	plain := &UnknownMetricError{Name: "xyz"}
	if strings.Contains(plain.Error(), "did you mean") {
		t.Errorf("Expected no suggestion, got %q", plain.Error())
	}
}

func TestUnavailableErrorUnwrap(t *testing.T) {
	cause := errors.New("not found")
	err := NewUnavailable("tool missing", cause)

	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatal("Expected errors.As to find UnavailableError")
	}
	if ue.Reason != "tool missing" {
		t.Errorf("Expected reason 'tool missing', got %q", ue.Reason)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
}
