package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/dispatch"
	"github.com/solaudit/solaudit/pkg/parsers"
	"github.com/solaudit/solaudit/pkg/registry"
)

var (
	runTimeout time.Duration
	runJSON    bool
	runRaw     bool
)

var runCmd = &cobra.Command{
	Use:   "run <tool> <target> [-- tool args]",
	Short: "Run a single analyzer and print its normalized findings",
	Long: `Runs one tool against one target. Arguments after -- replace the
tool's default argument template entirely.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(2)
		}
		logger := newLogger(cfg)

		tool, target := args[0], args[1]
		var extra []string
		if at := cmd.ArgsLenAtDash(); at >= 0 {
			extra = args[at:]
		}

		guard, err := newGuard(cfg)
		if err != nil {
			fmt.Printf("Error building sandbox: %v\n", err)
			os.Exit(2)
		}

		resolver := registry.NewResolver(cfg.ToolsRoot, logger)
		cands, err := resolver.Resolve(tool)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(2)
		}
		desc, _ := resolver.Descriptor(tool)

		dispatcher := dispatch.New(dispatch.Config{Concurrency: 1}, guard, logger)
		res, err := dispatcher.Run(cmd.Context(), dispatch.Request{
			Candidate:  cands[0],
			Fallbacks:  cands[1:],
			Descriptor: desc,
			Target:     target,
			ExtraArgs:  extra,
			Timeout:    runTimeout,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(2)
		}
		defer dispatch.Cleanup(res)

		fmt.Printf("[%s] %s exit=%d duration=%s\n", res.Status, res.Command, res.ExitCode, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Printf("  note: %v\n", res.Err)
		}
		if runRaw {
			os.Stdout.Write(res.Output)
			return
		}

		findings, warnings := parsers.Parse(desc, res.Tool, res.Output, res.StartedAt)
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(findings); err != nil {
				fmt.Printf("Error encoding findings: %v\n", err)
				os.Exit(2)
			}
			return
		}

		if len(findings) == 0 {
			fmt.Println("No findings.")
			return
		}
		fmt.Printf("\n%d finding(s):\n", len(findings))
		for _, f := range findings {
			fmt.Printf("  [%s] %-24s %s\n", f.Severity, f.Class, f.Title)
			if loc := f.Location.String(); loc != "" {
				fmt.Printf("        at %s\n", loc)
			}
		}
	},
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall-clock budget (default: the tool's own)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print normalized findings as JSON")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "Print the captured output instead of parsing it")
	rootCmd.AddCommand(runCmd)
}
