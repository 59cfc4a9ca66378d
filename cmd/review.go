package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/audit"
	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/history"
	"github.com/solaudit/solaudit/pkg/triage"
)

var (
	reviewOutput    string
	reviewNoHistory bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <artifact>",
	Short: "Walk the findings awaiting human review and record verdicts",
	Long: `Interactively resolves the needs-review section of a saved report.
Every verdict requires a rationale; accepting additionally requires an
impact estimate. The updated report is written back and recorded as a
new run, so later audits keep the decisions.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rep, err := engine.LoadArtifact(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(rep.NeedsReview) == 0 {
			fmt.Println("Nothing awaiting review.")
			return
		}

		decisions, findings := decisionsFromReport(rep)
		ev := triage.Evidence{Intents: rep.Intents}
		startedAt := time.Now().UTC()

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("---------------------------------------------------------")
		fmt.Printf("%d finding(s) awaiting human review for %s.\n", len(rep.NeedsReview), rep.Target)
		fmt.Println("Verdicts: [a]ccept, [r]eject, [s]kip. Type 'q' to stop.")
		fmt.Println("---------------------------------------------------------")

		resolved := 0
		for i, f := range rep.NeedsReview {
			fmt.Printf("\n(%d/%d)\n", i+1, len(rep.NeedsReview))
			printFinding(f, false)
			if f.Description != "" {
				fmt.Printf("      %s\n", f.Description)
			}
			if f.Evidence != "" {
				fmt.Println("      evidence:")
				for _, line := range strings.Split(f.Evidence, "\n") {
					fmt.Printf("        %s\n", line)
				}
			}

			answer := prompt(scanner, "\n> ")
			if answer == "q" || answer == "quit" {
				break
			}

			var state engine.TriageState
			switch answer {
			case "a", "accept":
				state = engine.StateAccepted
			case "r", "reject":
				state = engine.StateRejected
			default:
				continue
			}

			rationale := prompt(scanner, "rationale > ")
			if rationale == "" {
				fmt.Println("A rationale is required; skipping.")
				continue
			}
			impact := ""
			if state == engine.StateAccepted {
				impact = prompt(scanner, "impact > ")
				if impact == "" {
					fmt.Println("An impact estimate is required to accept; skipping.")
					continue
				}
			}

			d, err := humanDecide(f.Finding, state, rationale, impact, ev)
			if err != nil {
				fmt.Printf("Error recording verdict: %v\n", err)
				continue
			}
			decisions[f.ID] = d
			resolved++
		}

		if resolved == 0 {
			fmt.Println("\nNo verdicts recorded; report unchanged.")
			return
		}

		newRep, err := engine.BuildReport(uuid.NewString(), rep.Target, findings, decisions, rep.ExecutionLog, rep.Intents, time.Now())
		if err != nil {
			fmt.Printf("Error rebuilding report: %v\n", err)
			return
		}

		outPath := reviewOutput
		if outPath == "" {
			outPath = args[0]
		}
		if err := engine.SaveArtifact(outPath, newRep); err != nil {
			fmt.Printf("Error saving report: %v\n", err)
			return
		}

		recordReview(cmd, newRep, decisions, startedAt, outPath)

		fmt.Printf("\nResolved %d finding(s); %d still awaiting review.\n", resolved, len(newRep.NeedsReview))
		fmt.Printf("Updated report written to %s\n", outPath)
	},
}

// humanDecide walks a finding through the review machine: re-opened on
// the reviewer's attention, then resolved by their verdict.
func humanDecide(f engine.Finding, to engine.TriageState, rationale, impact string, ev triage.Evidence) (engine.Decision, error) {
	now := time.Now().UTC()
	step, err := triage.Decide(f, engine.StateNeedsHuman, triage.Verdict{
		State:     engine.StateUnderReview,
		Rationale: "reopened for human review",
		Strategy:  "human",
	}, ev, now)
	if err != nil {
		return engine.Decision{}, err
	}
	return triage.Decide(f, step.State, triage.Verdict{
		State:     to,
		Rationale: rationale,
		Impact:    impact,
		Strategy:  "human",
	}, ev, now)
}

// decisionsFromReport reconstructs the decision set and finding list
// the report was built from, so it can be rebuilt after review.
func decisionsFromReport(rep *engine.AuditReport) (map[string]engine.Decision, []engine.Finding) {
	decisions := make(map[string]engine.Decision)
	var findings []engine.Finding
	collect := func(fs []engine.ReportedFinding, state engine.TriageState) {
		for _, f := range fs {
			findings = append(findings, f.Finding)
			decisions[f.ID] = engine.Decision{
				FindingID: f.ID,
				State:     state,
				Rationale: f.Rationale,
				Impact:    f.Impact,
				Strategy:  f.Strategy,
				DecidedAt: rep.GeneratedAt,
			}
		}
	}
	collect(rep.Accepted, engine.StateAccepted)
	collect(rep.Rejected, engine.StateRejected)
	collect(rep.NeedsReview, engine.StateNeedsHuman)
	return decisions, findings
}

func recordReview(cmd *cobra.Command, rep *engine.AuditReport, decisions map[string]engine.Decision, startedAt time.Time, reportPath string) {
	if reviewNoHistory {
		return
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Warning: review not recorded: %v\n", err)
		return
	}
	dbPath, err := cfg.HistoryDBPath()
	if err != nil {
		fmt.Printf("Warning: review not recorded: %v\n", err)
		return
	}
	store, err := history.Open(dbPath, newLogger(cfg))
	if err != nil {
		fmt.Printf("Warning: review not recorded: %v\n", err)
		return
	}
	defer store.Close()

	code := audit.ExitClean
	if rep.Methodology.ToolsExecuted == 0 {
		code = audit.ExitError
	} else if len(rep.Accepted) > 0 {
		code = audit.ExitFindings
	}
	if err := store.RecordRun(cmd.Context(), history.RunRecord{
		RunID:      rep.RunID,
		Target:     rep.Target,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		ExitCode:   code,
		ReportPath: reportPath,
		Log:        rep.ExecutionLog,
		Decisions:  decisions,
	}); err != nil {
		fmt.Printf("Warning: review not recorded: %v\n", err)
	}
}

func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !scanner.Scan() {
		return "q"
	}
	return strings.TrimSpace(scanner.Text())
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "Write the updated report here instead of over the input")
	reviewCmd.Flags().BoolVar(&reviewNoHistory, "no-history", false, "Skip recording the review as a run")
	rootCmd.AddCommand(reviewCmd)
}
