package parsers

import (
	"encoding/json"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/registry"
)

// mythrilReport mirrors the shape of `myth analyze -o json`.
type mythrilReport struct {
	Success bool           `json:"success"`
	Error   *string        `json:"error"`
	Issues  []mythrilIssue `json:"issues"`
}

type mythrilIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	SWCID       string `json:"swc-id"`
	Contract    string `json:"contract"`
	Function    string `json:"function"`
	Filename    string `json:"filename"`
	LineNo      int    `json:"lineno"`
	Code        string `json:"code"`
}

// Symbolic execution proves reachability but not profitability.
const mythrilConfidence = 0.7

func parseMythril(tool string, desc *registry.ToolDescriptor, output []byte, at time.Time) ([]engine.Finding, []Warning) {
	if emptyOutput(output) {
		return nil, warnf(tool, "no output captured")
	}

	var rep mythrilReport
	if err := json.Unmarshal(output, &rep); err != nil {
		return nil, warnf(tool, "malformed JSON report: %v", err)
	}
	if rep.Error != nil && *rep.Error != "" {
		return nil, warnf(tool, "analysis failed: %s", *rep.Error)
	}

	var findings []engine.Finding
	for _, is := range rep.Issues {
		if is.Title == "" {
			continue
		}
		// A line number without a file is not addressable.
		loc := engine.Location{}
		if is.Filename != "" {
			loc = engine.Location{File: is.Filename, StartLine: is.LineNo}
		}

		class := engine.CanonicalClass("swc-" + is.SWCID)
		if is.SWCID == "" {
			class = engine.CanonicalClass(is.Title)
		}

		findings = append(findings, engine.New(
			tool,
			is.Title,
			mapSeverity(desc, is.Severity),
			loc,
			class,
			is.Description,
			is.Code,
			mythrilConfidence,
			at,
		))
	}
	return findings, nil
}
