package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
)

func printReport(rep *engine.AuditReport) {
	fmt.Printf("Audit of %s\n", rep.Target)
	fmt.Printf("Run %s, generated %s\n", rep.RunID, rep.GeneratedAt.Format(time.RFC3339))

	s := rep.Summary
	fmt.Printf("\nAccepted findings: %d (critical %d, high %d, medium %d, low %d, info %d)\n",
		s.Total, s.Critical, s.High, s.Medium, s.Low, s.Info)

	printSection("Accepted", rep.Accepted, true)
	printSection("Needs human review", rep.NeedsReview, false)
	printSection("Rejected", rep.Rejected, false)

	m := rep.Methodology
	fmt.Printf("\nMethodology: %d tools executed, %d failed\n", m.ToolsExecuted, m.ToolsFailed)
	for _, inc := range m.Incomplete {
		fmt.Printf("  incomplete: %s\n", inc)
	}
	for _, n := range m.Notes {
		fmt.Printf("  note: %s\n", n)
	}
	if len(rep.Intents) > 0 {
		fmt.Printf("Repository intents: %s\n", strings.Join(rep.Intents, ", "))
	}
}

func printSection(title string, fs []engine.ReportedFinding, full bool) {
	if len(fs) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(fs))
	for _, f := range fs {
		printFinding(f, full)
	}
}

func printFinding(f engine.ReportedFinding, full bool) {
	fmt.Printf("  [%s] %s", strings.ToUpper(f.Severity.String()), f.Title)
	if loc := f.Location.String(); loc != "" {
		fmt.Printf(" at %s", loc)
	}
	fmt.Println()
	fmt.Printf("      id %s, class %s, reported by %s\n", f.ID, f.Class, strings.Join(f.Tools, "+"))
	fmt.Printf("      rationale: %s\n", f.Rationale)
	if !full {
		return
	}
	if f.Impact != "" {
		fmt.Printf("      impact: %s\n", f.Impact)
	}
	if f.Remediation != "" {
		fmt.Printf("      remediation: %s\n", f.Remediation)
	}
}

func printDiff(d *engine.ReportDiff) {
	fmt.Printf("Comparing run %s to run %s\n", d.BeforeRun, d.AfterRun)
	fmt.Printf("new %d, fixed %d, unchanged %d\n", len(d.New), len(d.Fixed), len(d.Unchanged))

	printSection("New", d.New, true)
	printSection("Fixed", d.Fixed, false)
	printSection("Unchanged", d.Unchanged, false)
}
