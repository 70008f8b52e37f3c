package chains

import "strings"

// Severity is the combined severity of a chain. Values are lowercase
// strings; anything else is rejected during normalization.
type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

// ParseSeverity normalizes a raw severity value case-insensitively and
// reports whether it is one of the four accepted levels.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case Low, Medium, High, Critical:
		return s, true
	}
	return "", false
}

// ValueRange is an estimated payout range in dollars.
type ValueRange struct {
	Min int
	Max int
}

var severityValues = map[Severity]ValueRange{
	Low:      {Min: 50, Max: 250},
	Medium:   {Min: 250, Max: 1500},
	High:     {Min: 1500, Max: 5000},
	Critical: {Min: 5000, Max: 25000},
}

// EstimateValue looks up the payout range for a chain's combined severity.
// Unrecognized severities report ok=false and render as N/A, never an error.
func EstimateValue(raw string) (ValueRange, bool) {
	s, ok := ParseSeverity(raw)
	if !ok {
		return ValueRange{}, false
	}
	v, ok := severityValues[s]
	return v, ok
}
