package parsers

import (
	"encoding/json"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/registry"
)

// slitherReport mirrors the shape of `slither --json -`.
type slitherReport struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Results struct {
		Detectors []slitherDetector `json:"detectors"`
	} `json:"results"`
}

type slitherDetector struct {
	Check                string           `json:"check"`
	Impact               string           `json:"impact"`
	Confidence           string           `json:"confidence"`
	Description          string           `json:"description"`
	FirstMarkdownElement string           `json:"first_markdown_element"`
	Elements             []slitherElement `json:"elements"`
}

type slitherElement struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	SourceMapping struct {
		FilenameRelative string `json:"filename_relative"`
		FilenameAbsolute string `json:"filename_absolute"`
		Lines            []int  `json:"lines"`
	} `json:"source_mapping"`
}

var slitherConfidence = map[string]float64{
	"high":   0.9,
	"medium": 0.6,
	"low":    0.3,
}

func parseSlither(tool string, desc *registry.ToolDescriptor, output []byte, at time.Time) ([]engine.Finding, []Warning) {
	if emptyOutput(output) {
		return nil, warnf(tool, "no output captured")
	}

	var rep slitherReport
	if err := json.Unmarshal(output, &rep); err != nil {
		return nil, warnf(tool, "malformed JSON report: %v", err)
	}
	if !rep.Success && rep.Error != "" {
		return nil, warnf(tool, "analysis failed: %s", rep.Error)
	}

	var findings []engine.Finding
	for _, det := range rep.Results.Detectors {
		if det.Check == "" && det.Description == "" {
			continue
		}
		title := det.Check
		if title == "" {
			title = "slither detector result"
		}

		conf, ok := slitherConfidence[normalizeKey(det.Confidence)]
		if !ok {
			conf = 0.5
		}

		findings = append(findings, engine.New(
			tool,
			title,
			mapSeverity(desc, det.Impact),
			slitherLocation(det.Elements),
			engine.CanonicalClass(det.Check),
			det.Description,
			det.FirstMarkdownElement,
			conf,
			at,
		))
	}
	return findings, nil
}

// slitherLocation takes the first element carrying a source mapping;
// detectors order elements most-specific first.
func slitherLocation(elems []slitherElement) engine.Location {
	for _, el := range elems {
		sm := el.SourceMapping
		file := sm.FilenameRelative
		if file == "" {
			file = sm.FilenameAbsolute
		}
		if file == "" {
			continue
		}
		loc := engine.Location{File: file}
		for _, n := range sm.Lines {
			if loc.StartLine == 0 || n < loc.StartLine {
				loc.StartLine = n
			}
			if n > loc.EndLine {
				loc.EndLine = n
			}
		}
		return loc
	}
	return engine.Location{}
}
