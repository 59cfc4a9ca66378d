package parsers

import (
	"encoding/json"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/registry"
)

// Minimal SARIF 2.1.0 reader covering what securify emits. Rule
// metadata supplies the severity when present; the result level is
// the fallback vocabulary.
type sarifLog struct {
	Runs []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool struct {
		Driver struct {
			Name  string      `json:"name"`
			Rules []sarifRule `json:"rules"`
		} `json:"driver"`
	} `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifRule struct {
	ID               string `json:"id"`
	ShortDescription struct {
		Text string `json:"text"`
	} `json:"shortDescription"`
	Properties struct {
		Severity string `json:"severity"`
	} `json:"properties"`
}

type sarifResult struct {
	RuleID  string `json:"ruleId"`
	Level   string `json:"level"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Locations []struct {
		PhysicalLocation struct {
			ArtifactLocation struct {
				URI string `json:"uri"`
			} `json:"artifactLocation"`
			Region struct {
				StartLine int `json:"startLine"`
				EndLine   int `json:"endLine"`
			} `json:"region"`
		} `json:"physicalLocation"`
	} `json:"locations"`
}

const sarifConfidence = 0.6

func parseSARIF(tool string, desc *registry.ToolDescriptor, output []byte, at time.Time) ([]engine.Finding, []Warning) {
	if emptyOutput(output) {
		return nil, warnf(tool, "no output captured")
	}

	var log sarifLog
	if err := json.Unmarshal(output, &log); err != nil {
		return nil, warnf(tool, "malformed SARIF report: %v", err)
	}
	if len(log.Runs) == 0 {
		return nil, warnf(tool, "SARIF report has no runs")
	}

	var findings []engine.Finding
	for _, run := range log.Runs {
		rules := make(map[string]sarifRule, len(run.Tool.Driver.Rules))
		for _, r := range run.Tool.Driver.Rules {
			rules[r.ID] = r
		}

		for _, res := range run.Results {
			if res.RuleID == "" && res.Message.Text == "" {
				continue
			}

			title := res.RuleID
			rawSeverity := res.Level
			if rule, ok := rules[res.RuleID]; ok {
				if rule.ShortDescription.Text != "" {
					title = rule.ShortDescription.Text
				}
				if rule.Properties.Severity != "" {
					rawSeverity = rule.Properties.Severity
				}
			}
			if title == "" {
				title = res.Message.Text
			}

			findings = append(findings, engine.New(
				tool,
				title,
				mapSeverity(desc, rawSeverity),
				sarifLocation(res),
				engine.CanonicalClass(res.RuleID),
				res.Message.Text,
				"",
				sarifConfidence,
				at,
			))
		}
	}
	return findings, nil
}

func sarifLocation(res sarifResult) engine.Location {
	for _, l := range res.Locations {
		pl := l.PhysicalLocation
		if pl.ArtifactLocation.URI == "" {
			continue
		}
		return engine.Location{
			File:      pl.ArtifactLocation.URI,
			StartLine: pl.Region.StartLine,
			EndLine:   pl.Region.EndLine,
		}
	}
	return engine.Location{}
}
