// Package parsers converts captured tool output into normalized
// findings. Adapter selection is driven entirely by the descriptor's
// declared output format; output is never shape-sniffed.
package parsers

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/observability"
	"github.com/solaudit/solaudit/pkg/registry"
)

// Warning is a non-fatal parse problem. A malformed report yields zero
// findings plus a warning, never an error that could sink the audit.
type Warning struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Tool, w.Message)
}

func warnf(tool, format string, args ...any) []Warning {
	return []Warning{{Tool: tool, Message: fmt.Sprintf(format, args...)}}
}

type adapter func(tool string, desc *registry.ToolDescriptor, output []byte, at time.Time) ([]engine.Finding, []Warning)

// Parse normalizes one execution's captured output. The discovery
// timestamp is the execution's start time so re-running a tool cannot
// make an old finding look newer than it is.
func Parse(desc *registry.ToolDescriptor, tool string, output []byte, at time.Time) ([]engine.Finding, []Warning) {
	if desc == nil {
		return nil, warnf(tool, "no declared output format, skipping normalization")
	}

	findings, warnings := adapterFor(desc)(tool, desc, output, at)

	m := observability.GetMetrics()
	for _, f := range findings {
		m.FindingsNormalized.WithLabelValues(f.Severity.String()).Inc()
	}
	for range warnings {
		m.ParseWarnings.WithLabelValues(tool).Inc()
	}
	return findings, warnings
}

func adapterFor(desc *registry.ToolDescriptor) adapter {
	switch desc.Kind {
	case registry.KindSlither:
		return parseSlither
	case registry.KindMythril:
		return parseMythril
	}
	switch desc.Output {
	case registry.OutputSARIF:
		return parseSARIF
	case registry.OutputJSON:
		return parseUnsupportedJSON
	default:
		return parseText
	}
}

func parseUnsupportedJSON(tool string, _ *registry.ToolDescriptor, _ []byte, _ time.Time) ([]engine.Finding, []Warning) {
	return nil, warnf(tool, "declares JSON output but has no adapter")
}

// mapSeverity translates a tool's own vocabulary through the
// descriptor's mapping. Anything unmapped lands on Info; a tool must
// not be able to invent severities above its declared vocabulary.
func mapSeverity(desc *registry.ToolDescriptor, raw string) engine.Severity {
	key := normalizeKey(raw)
	if desc != nil {
		if mapped, ok := desc.SeverityMap[key]; ok {
			key = mapped
		}
	}
	if sev, ok := engine.ParseSeverity(key); ok {
		return sev
	}
	return engine.SeverityInfo
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func emptyOutput(output []byte) bool {
	return len(bytes.TrimSpace(output)) == 0
}
