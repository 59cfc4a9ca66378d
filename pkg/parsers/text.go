package parsers

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/registry"
)

// Fuzzers report violated properties as line-oriented text with a
// reproducing call sequence underneath. A concrete counterexample is
// the strongest evidence any tool produces.
const fuzzerConfidence = 0.9

const maxEvidenceLines = 12

var (
	failLine  = regexp.MustCompile(`(?i)\b(failed!?|falsified|violated)\b`)
	trailFail = regexp.MustCompile(`(?i)[:\s]*fail(ed)?!*\s*💥?\s*$`)
	leadFail  = regexp.MustCompile(`(?i)^\s*\[?fail(ed)?\]?[:\s]+`)
	solLoc    = regexp.MustCompile(`([\w./-]+\.sol):(\d+)`)
)

func parseText(tool string, _ *registry.ToolDescriptor, output []byte, at time.Time) ([]engine.Finding, []Warning) {
	if emptyOutput(output) {
		return nil, nil
	}

	var findings []engine.Finding
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !failLine.MatchString(line) {
			continue
		}

		var evidence []string
		for j := i + 1; j < len(lines) && len(evidence) < maxEvidenceLines; j++ {
			if !evidenceLine(lines[j]) {
				break
			}
			evidence = append(evidence, strings.TrimRight(lines[j], " \t"))
			i = j
		}

		findings = append(findings, engine.New(
			tool,
			failTitle(line),
			engine.SeverityHigh,
			textLocation(line, evidence),
			failClass(line),
			strings.TrimSpace(line),
			strings.Join(evidence, "\n"),
			fuzzerConfidence,
			at,
		))
	}
	return findings, nil
}

func evidenceLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
		return true
	}
	lower := strings.ToLower(line)
	if strings.Contains(lower, "call sequence") || strings.HasPrefix(lower, "test for method") {
		return true
	}
	// Medusa numbers the reproducing steps.
	if len(line) > 1 && line[0] >= '1' && line[0] <= '9' && (line[1] == ')' || line[1] == '.') {
		return true
	}
	return false
}

func failTitle(line string) string {
	title := strings.TrimSpace(trailFail.ReplaceAllString(line, ""))
	title = strings.TrimSpace(leadFail.ReplaceAllString(title, ""))
	if title == "" {
		title = strings.TrimSpace(line)
	}
	if r := []rune(title); len(r) > 120 {
		title = string(r[:120])
	}
	return title
}

func failClass(line string) string {
	if strings.Contains(strings.ToLower(line), "assert") {
		return engine.CanonicalClass("assertion-failure")
	}
	return engine.CanonicalClass("property-violation")
}

func textLocation(header string, evidence []string) engine.Location {
	for _, line := range append([]string{header}, evidence...) {
		if m := solLoc.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			return engine.Location{File: m[1], StartLine: n}
		}
	}
	return engine.Location{}
}
