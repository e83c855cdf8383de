package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/multitester/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	Format     string
	Database   string
	ConfigFile string
	RunID      string
	Limit      int
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Plans []HistoryEntry `json:"plans"`
}

// HistoryEntry is one journal row as shown to the user.
type HistoryEntry struct {
	Seq          int64  `json:"seq"`
	RunID        string `json:"run_id"`
	RecordedAt   string `json:"recorded_at"`
	ConfigFile   string `json:"config_file"`
	PackageName  string `json:"package_name"`
	ProjectCount int    `json:"project_count"`
	Digest       string `json:"digest"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously assembled plans",
		Long: `List the plans recorded in the journal, newest first.

The journal defaults to .multi-tester/history.db in the current directory,
which is where plans for ./.multi-tester.yml are recorded.

With --run, print the plan recorded for that run id instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.Flags().StringVar(&opts.Database, "history", HistoryFile, "path to the plan journal")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "only show plans for this test-plan file")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "print the plan recorded for this run id")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of plans (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format: opts.Format,
		Writer: cmd.OutOrStdout(),
	}
	if !isValidFormat(opts.Format) {
		formatter.Format = "text"
		return report(formatter, ErrCodeGeneric, ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return report(formatter, ErrCodeHistory, ExitCommandError,
			fmt.Sprintf("plan journal not found: %s", opts.Database), err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return report(formatter, ErrCodeHistory, ExitCommandError, err.Error(), err)
	}
	defer st.Close()

	if opts.RunID != "" {
		return showPlan(cmd, formatter, st, opts.RunID)
	}

	var plans []store.PlanEntry
	if opts.ConfigFile != "" {
		plans, err = st.ListPlansForConfig(cmd.Context(), resolvePath(opts.ConfigFile), opts.Limit)
	} else {
		plans, err = st.ListPlans(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return report(formatter, ErrCodeHistory, ExitCommandError, err.Error(), err)
	}

	result := HistoryResult{Plans: make([]HistoryEntry, 0, len(plans))}
	for _, p := range plans {
		result.Plans = append(result.Plans, newHistoryEntry(p))
	}

	return formatter.Success(result)
}

// HistoryPlan is a journal row together with the plan it recorded.
type HistoryPlan struct {
	HistoryEntry
	Plan json.RawMessage `json:"plan"`
}

// RenderText prints the row header followed by the canonical plan.
func (p HistoryPlan) RenderText(w io.Writer) {
	fmt.Fprintf(w, "#%d  %s  %s  %s\n", p.Seq, p.RecordedAt, p.PackageName, p.Digest)
	fmt.Fprintln(w, string(p.Plan))
}

func showPlan(cmd *cobra.Command, formatter *OutputFormatter, st *store.Store, runID string) error {
	entry, err := st.PlanByRunID(cmd.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		return report(formatter, ErrCodeHistory, ExitCommandError,
			fmt.Sprintf("no plan recorded for run %s", runID), err)
	}
	if err != nil {
		return report(formatter, ErrCodeHistory, ExitCommandError, err.Error(), err)
	}

	return formatter.SuccessWithRun(entry.RunID, HistoryPlan{
		HistoryEntry: newHistoryEntry(entry),
		Plan:         json.RawMessage(entry.Plan),
	})
}

func newHistoryEntry(p store.PlanEntry) HistoryEntry {
	return HistoryEntry{
		Seq:          p.Seq,
		RunID:        p.RunID,
		RecordedAt:   p.RecordedAt.Format(time.RFC3339),
		ConfigFile:   p.ConfigFile,
		PackageName:  p.PackageName,
		ProjectCount: p.ProjectCount,
		Digest:       p.Digest,
	}
}

// RenderText prints one line per plan.
func (r HistoryResult) RenderText(w io.Writer) {
	if len(r.Plans) == 0 {
		fmt.Fprintln(w, "No plans recorded.")
		return
	}
	for _, p := range r.Plans {
		fmt.Fprintf(w, "#%d  %s  %s  %d project(s)  %s  %s\n",
			p.Seq, p.RecordedAt, p.PackageName, p.ProjectCount, shortDigest(p.Digest), p.ConfigFile)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// resolvePath makes path absolute and symlink-free, as config.Assemble
// stores it. The input is returned unchanged if it cannot be resolved.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}
