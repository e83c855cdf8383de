package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/multitester/internal/config"
	"github.com/roach88/multitester/internal/plan"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [--add <project>]... [-v] [-q] [config-file]",
		Short: "Print the resolved plan as canonical JSON",
		Long: `Assemble the plan exactly like the root command and print it as
canonical JSON: sorted keys, projects listed in execution order.

Examples:
  multi-tester plan
  multi-tester plan ci/.multi-tester.yml
  multi-tester plan --format json --history= .multi-tester.yml`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, raw []string) error {
			return runAssemble(rootOpts, cmd, raw, renderPlan)
		},
	}

	return cmd
}

func renderPlan(f *OutputFormatter, cfg *config.Config, snapshot plan.Snapshot, digest string) error {
	data, err := snapshot.Canonical()
	if err != nil {
		return report(f, ErrCodeGeneric, ExitFailure, fmt.Sprintf("failed to render plan: %v", err), err)
	}

	if f.Format == "json" {
		return f.SuccessWithRun(cfg.RunID, map[string]any{
			"digest": digest,
			"plan":   json.RawMessage(data),
		})
	}

	_, err = fmt.Fprintln(f.Writer, string(data))
	return err
}
