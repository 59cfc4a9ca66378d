package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/registry"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [tool]",
	Short: "Show how analyzers resolve on this machine",
	Long: `Without arguments, lists every catalog tool with its best invocation.
With a tool name, lists every viable candidate in dispatch order.
Discovery is a pure lookup; nothing is executed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		resolver := registry.NewResolver(cfg.ToolsRoot, newLogger(cfg))

		if len(args) == 1 {
			printCandidates(resolver, args[0])
			return
		}

		fmt.Printf("Tools root: %s\n\n", cfg.ToolsRoot)
		for _, d := range resolver.Tools() {
			cands, err := resolver.Resolve(d.Name)
			if err != nil {
				fmt.Printf("%-12s not found\n", d.Name)
				continue
			}
			best := cands[0]
			fmt.Printf("%-12s %-10s %-7s %s\n", d.Name, best.Source, best.Confidence, best.Program)
		}
	},
}

func printCandidates(resolver *registry.Resolver, name string) {
	cands, err := resolver.Resolve(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Candidates for %s, in dispatch order:\n", name)
	for i, c := range cands {
		fmt.Printf("%d. [%s/%s] %s\n", i+1, c.Source, c.Confidence, c.CommandLine())
		if c.Dir != "" {
			fmt.Printf("   dir: %s\n", c.Dir)
		}
	}
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
