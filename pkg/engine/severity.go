package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the canonical 5-level scale every tool vocabulary maps
// into. Numeric order follows rank so findings sort directly.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "Info",
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Info"
}

// ParseSeverity maps a canonical severity name case-insensitively.
// Unknown words report false so callers can apply the Info default.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, true
	case "high":
		return SeverityHigh, true
	case "medium":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	case "info", "informational":
		return SeverityInfo, true
	}
	return SeverityInfo, false
}

// MarshalJSON writes the lowercase form used by the artifact schema.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, ok := ParseSeverity(name)
	if !ok {
		return fmt.Errorf("unknown severity %q", name)
	}
	*s = sev
	return nil
}
