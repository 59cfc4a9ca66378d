package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/advisor"
	"github.com/solaudit/solaudit/pkg/audit"
	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/dispatch"
	"github.com/solaudit/solaudit/pkg/history"
	"github.com/solaudit/solaudit/pkg/intel"
	"github.com/solaudit/solaudit/pkg/observability"
	"github.com/solaudit/solaudit/pkg/registry"
	"github.com/solaudit/solaudit/pkg/triage"
)

var (
	auditTools       []string
	auditTimeout     time.Duration
	auditOutput      string
	auditRules       string
	auditNoAdvisor   bool
	auditNoHistory   bool
	auditMetricsAddr string
)

var auditCmd = &cobra.Command{
	Use:   "audit <target>",
	Short: "Run the full analyzer battery and produce a triaged report",
	Long: `Resolves and executes every available analyzer against the target,
merges and triages their findings, and writes the report artifact.

Exit codes: 0 clean, 1 accepted findings, 2 audit aborted or tool
coverage incomplete.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := runAudit(cmd.Context(), args[0])
		if code != audit.ExitClean {
			os.Exit(code)
		}
	},
}

func runAudit(ctx context.Context, target string) int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return audit.ExitError
	}
	logger := newLogger(cfg)

	guard, err := newGuard(cfg)
	if err != nil {
		fmt.Printf("Error building sandbox: %v\n", err)
		return audit.ExitError
	}

	rulesPath := auditRules
	if rulesPath == "" {
		rulesPath = cfg.RulesPath
	}
	rules, err := triage.LoadRules(rulesPath)
	if err != nil {
		fmt.Printf("Error loading triage rules: %v\n", err)
		return audit.ExitError
	}
	ruleStrategy, err := triage.NewRuleStrategy(rules)
	if err != nil {
		fmt.Printf("Error compiling triage rules: %v\n", err)
		return audit.ExitError
	}

	strategies := []triage.Strategy{ruleStrategy}
	if !auditNoAdvisor {
		if key := cfg.GetAPIKey(cfg.SelectedProvider); key != "" {
			provider, err := advisor.NewProvider(ctx, cfg.SelectedProvider, key, cfg.SelectedModel)
			if err != nil {
				logger.Warn("advisor unavailable, triaging on rules alone", "error", err)
			} else {
				defer provider.Close()
				strategies = append(strategies, triage.NewAdvisorStrategy(provider))
			}
		}
	}

	var store *history.Store
	if !auditNoHistory {
		if dbPath, err := cfg.HistoryDBPath(); err != nil {
			logger.Warn("history disabled", "error", err)
		} else if s, err := history.Open(dbPath, logger); err != nil {
			logger.Warn("history disabled", "error", err)
		} else {
			store = s
			defer store.Close()
		}
	}

	if auditMetricsAddr != "" {
		srv := observability.NewServer(auditMetricsAddr, logger)
		go srv.Start(ctx)
	}

	pipeline := audit.New(audit.Deps{
		Guard:    guard,
		Resolver: registry.NewResolver(cfg.ToolsRoot, logger),
		Dispatcher: dispatch.New(dispatch.Config{
			Concurrency: cfg.Concurrency,
		}, guard, logger),
		Intel: intel.NewClient(intel.Config{
			IntentEndpoint: cfg.Intel.IntentEndpoint,
			EmbedEndpoint:  cfg.Intel.EmbedEndpoint,
		}, logger),
		Triage:  triage.NewPipeline(logger, strategies...),
		History: store,
	}, logger)

	out, err := pipeline.Run(ctx, audit.Options{
		Target:     target,
		Tools:      auditTools,
		Timeout:    auditTimeout,
		ReportPath: auditOutput,
	})
	if err != nil {
		fmt.Printf("Audit aborted: %v\n", err)
		return audit.ExitError
	}

	printReport(out.Report)
	if out.ReportPath != "" {
		fmt.Printf("\nReport written to %s\n", out.ReportPath)
	}
	return out.ExitCode
}

func init() {
	auditCmd.Flags().StringSliceVar(&auditTools, "tools", nil, "Analyzers to run (default: every non-utility catalog tool)")
	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 0, "Per-tool wall-clock budget (default: each tool's own)")
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", "solaudit-report.json", "Report artifact path, .gz compresses")
	auditCmd.Flags().StringVar(&auditRules, "rules", "", "Triage rules file (default: configured rules, else built-ins)")
	auditCmd.Flags().BoolVar(&auditNoAdvisor, "no-advisor", false, "Skip the model advisor triage strategy")
	auditCmd.Flags().BoolVar(&auditNoHistory, "no-history", false, "Skip run history persistence")
	auditCmd.Flags().StringVar(&auditMetricsAddr, "metrics-addr", "", "Serve /metrics on this address for the run's duration")
	rootCmd.AddCommand(auditCmd)
}
