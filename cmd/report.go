package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/history"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect saved audit reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <artifact>",
	Short: "Render a saved report artifact",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rep, err := engine.LoadArtifact(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		printReport(rep)
	},
}

var reportDiffCmd = &cobra.Command{
	Use:   "diff <before> <after>",
	Short: "Compare the accepted findings of two report artifacts",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		before, err := engine.LoadArtifact(args[0])
		if err != nil {
			fmt.Printf("Error loading %s: %v\n", args[0], err)
			return
		}
		after, err := engine.LoadArtifact(args[1])
		if err != nil {
			fmt.Printf("Error loading %s: %v\n", args[1], err)
			return
		}
		printDiff(engine.DiffReports(before, after))
	},
}

var reportListLimit int

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded audit runs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		dbPath, err := cfg.HistoryDBPath()
		if err != nil {
			fmt.Printf("Error locating history: %v\n", err)
			return
		}
		store, err := history.Open(dbPath, newLogger(cfg))
		if err != nil {
			fmt.Printf("Error opening history: %v\n", err)
			return
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context(), reportListLimit)
		if err != nil {
			fmt.Printf("Error listing runs: %v\n", err)
			return
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return
		}

		fmt.Printf("%-36s %-20s %-8s %-8s %s\n", "RUN", "STARTED", "ACCEPTED", "REVIEW", "TARGET")
		for _, r := range runs {
			fmt.Printf("%-36s %-20s %-8d %-8d %s\n",
				r.RunID,
				r.StartedAt.UTC().Format(time.RFC3339),
				r.Accepted,
				r.NeedsReview,
				r.Target)
		}
	},
}

func init() {
	reportListCmd.Flags().IntVar(&reportListLimit, "limit", 20, "Maximum runs to list")
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportDiffCmd)
	reportCmd.AddCommand(reportListCmd)
	rootCmd.AddCommand(reportCmd)
}
