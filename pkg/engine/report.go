package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/solaudit/solaudit/pkg/errs"
)

// ToolRun is one tool execution as recorded in the report's appendix.
// It is a flattened view of the dispatcher's result, kept independent
// of it so reports can be rebuilt from persisted history alone.
type ToolRun struct {
	Tool       string    `json:"tool"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Truncated  bool      `json:"truncated,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// Completed reports whether the run produced output worth parsing.
// A non-zero exit is still a completion; many analyzers signal
// "findings present" through the exit code.
func (r ToolRun) Completed() bool {
	return r.Status == "completed"
}

// ReportedFinding pairs a finding with the triage verdict that put it
// in its report section.
type ReportedFinding struct {
	Finding
	Rationale   string `json:"rationale"`
	Impact      string `json:"impact,omitempty"`
	Remediation string `json:"remediation,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
}

// Summary counts accepted findings by severity. Rejected and
// needs-review findings never contribute to the headline numbers.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

func (s *Summary) add(sev Severity) {
	s.Total++
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	default:
		s.Info++
	}
}

// Methodology describes how the audit ran, including what did not run.
type Methodology struct {
	ToolsExecuted int      `json:"tools_executed"`
	ToolsFailed   int      `json:"tools_failed"`
	Incomplete    []string `json:"incomplete,omitempty"`
	Notes         []string `json:"notes,omitempty"`
}

// AuditReport is the final artifact of one audit run.
type AuditReport struct {
	SchemaVersion string            `json:"schema_version"`
	RunID         string            `json:"run_id"`
	Target        string            `json:"target"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Summary       Summary           `json:"summary"`
	Accepted      []ReportedFinding `json:"accepted,omitempty"`
	NeedsReview   []ReportedFinding `json:"needs_review,omitempty"`
	Rejected      []ReportedFinding `json:"rejected,omitempty"`
	ExecutionLog  []ToolRun         `json:"execution_log"`
	Methodology   Methodology       `json:"methodology"`
	Intents       []string          `json:"intents,omitempty"`
}

// BuildReport assembles the report for one run. Accepted findings are
// ordered most severe first, ties broken by earliest discovery. An
// accepted finding without a rationale and impact estimate aborts the
// build; every claim in the main body must be explainable.
func BuildReport(runID, target string, findings []Finding, decisions map[string]Decision, log []ToolRun, intents []string, now time.Time) (*AuditReport, error) {
	rep := &AuditReport{
		SchemaVersion: ArtifactSchemaVersion,
		RunID:         runID,
		Target:        target,
		GeneratedAt:   now.UTC(),
		ExecutionLog:  append(make([]ToolRun, 0, len(log)), log...),
		Intents:       append([]string(nil), intents...),
	}

	for _, f := range findings {
		d, ok := decisions[f.ID]
		if !ok {
			rep.NeedsReview = append(rep.NeedsReview, ReportedFinding{
				Finding:   f,
				Rationale: "no triage decision recorded",
			})
			continue
		}
		rf := ReportedFinding{
			Finding:   f,
			Rationale: d.Rationale,
			Impact:    d.Impact,
			Strategy:  d.Strategy,
		}
		switch d.State {
		case StateAccepted:
			if d.Rationale == "" {
				return nil, fmt.Errorf("accepted finding %s has no rationale: %w", f.ID, errs.ErrIncompleteInput)
			}
			if d.Impact == "" {
				return nil, fmt.Errorf("accepted finding %s has no impact estimate: %w", f.ID, errs.ErrIncompleteInput)
			}
			rf.Remediation = RemediationHint(f.Class)
			rep.Accepted = append(rep.Accepted, rf)
			rep.Summary.add(f.Severity)
		case StateRejected:
			if d.Rationale == "" {
				return nil, fmt.Errorf("rejected finding %s has no rationale: %w", f.ID, errs.ErrIncompleteInput)
			}
			rep.Rejected = append(rep.Rejected, rf)
		default:
			// Raw and UnderReview land here too; an unfinished triage
			// pass must surface as work remaining, not vanish.
			rep.NeedsReview = append(rep.NeedsReview, rf)
		}
	}

	sortReported(rep.Accepted)
	sortReported(rep.NeedsReview)
	sortReported(rep.Rejected)

	rep.Methodology = buildMethodology(log)
	return rep, nil
}

func sortReported(fs []ReportedFinding) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Severity != fs[j].Severity {
			return fs[i].Severity > fs[j].Severity
		}
		if !fs[i].DiscoveredAt.Equal(fs[j].DiscoveredAt) {
			return fs[i].DiscoveredAt.Before(fs[j].DiscoveredAt)
		}
		return fs[i].ID < fs[j].ID
	})
}

func buildMethodology(log []ToolRun) Methodology {
	m := Methodology{}
	for _, r := range log {
		if r.Completed() {
			m.ToolsExecuted++
			continue
		}
		m.ToolsFailed++
		entry := fmt.Sprintf("%s: %s", r.Tool, r.Status)
		if r.Note != "" {
			entry += " (" + r.Note + ")"
		}
		m.Incomplete = append(m.Incomplete, entry)
	}
	sort.Strings(m.Incomplete)
	if m.ToolsExecuted == 0 {
		m.Notes = append(m.Notes, "zero tools executed; results reflect no analysis coverage")
	}
	return m
}
