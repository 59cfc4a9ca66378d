package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/observability"
	"github.com/solaudit/solaudit/pkg/sandbox"
)

var rootCmd = &cobra.Command{
	Use:   "solaudit",
	Short: "Smart contract security tool orchestration and triage",
	Long: `Solaudit drives a battery of smart contract analyzers against a target,
merges their output into deduplicated findings, triages each finding,
and assembles an auditor-ready report with a full execution log.`,
}

var logLevel string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// newLogger builds the command logger; the flag overrides the config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return observability.NewLogger(level)
}

// newGuard builds the target allow-list. With no roots configured the
// current working directory is the sandbox.
func newGuard(cfg *config.Config) (*sandbox.Guard, error) {
	roots := cfg.AllowedRoots
	if len(roots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		roots = []string{cwd}
	}
	return sandbox.New(roots...)
}
