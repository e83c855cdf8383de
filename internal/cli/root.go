package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/multitester/internal/args"
	"github.com/roach88/multitester/internal/config"
	"github.com/roach88/multitester/internal/plan"
	"github.com/roach88/multitester/internal/store"
)

// Options extracted from the raw argument list before the tester flags.
const (
	flagFormat  = "--format"
	flagHistory = "--history"
)

// HistoryFile is the journal location relative to the test plan's directory.
var HistoryFile = filepath.Join(".multi-tester", "history.db")

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the options shared by the assembling commands.
type RootOptions struct {
	Format string

	// History is the journal path. Empty disables the journal.
	History string

	// historySet records whether History came from the command line.
	historySet bool

	// Getwd locates the default test plan. Defaults to os.Getwd.
	Getwd func() (string, error)
}

// NewRootCommand creates the root command for the multi-tester CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "multi-tester [--add <project>]... [-v] [-q] [config-file]",
		Short: "Test a package against the projects that depend on it",
		Long: `Assemble the multi-tester plan for the package in the current directory.

Reads the test plan (default: .multi-tester.yml), resolves the package
directory and its composer.json, and prints the projects that will be
tested, in order.

Flags:
  --add <project>        append a default entry for <project> to the plan (repeatable)
  -v, --verbose          verbose output
  -q, --quiet-install    hide install output
  --format text|json     output format
  --history <db>         plan journal path (--history= disables it)

Each assembled plan is recorded in a journal, by default
.multi-tester/history.db next to the test plan. The directory is created
when missing; pass --history= to skip the journal. List recorded plans
with "multi-tester history".

Exit codes:
  0 - Plan assembled
  2 - Configuration error (missing plan, bad directory, missing package name)`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, raw []string) error {
			return runAssemble(opts, cmd, raw, renderSummary)
		},
	}

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// renderFunc writes the successful result of an assembly.
type renderFunc func(f *OutputFormatter, cfg *config.Config, snapshot plan.Snapshot, digest string) error

// runAssemble parses raw, assembles the configuration, records it in the
// journal and renders it.
func runAssemble(opts *RootOptions, cmd *cobra.Command, raw []string, render renderFunc) error {
	rest, formats := args.Filter(raw, flagFormat)
	rest, histories := args.Filter(rest, flagHistory)

	if args.HasAny(rest, "-h", "--help") {
		return cmd.Help()
	}

	parsed := args.Parse(append([]string{cmd.CommandPath()}, rest...))

	opts.Format = args.Last(formats, "text")
	opts.History = args.Last(histories, "")
	opts.historySet = len(histories) > 0

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: parsed.Verbose,
	}
	if !isValidFormat(opts.Format) {
		formatter.Format = "text"
		return report(formatter, ErrCodeGeneric, ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
	}
	logger := NewLogger(cmd.ErrOrStderr(), opts.Format, parsed.Verbose)
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Assemble(ctx, config.Options{
		DefaultConfigFile: opts.defaultConfigFile(),
		Arguments:         parsed,
		Logger:            logger,
	})
	if err != nil {
		return report(formatter, ErrorCode(err), ExitCommandError, err.Error(), err)
	}

	snapshot, err := plan.FromConfig(cfg)
	if err != nil {
		return report(formatter, ErrCodeGeneric, ExitFailure, fmt.Sprintf("failed to render plan: %v", err), err)
	}
	digest, err := snapshot.Digest()
	if err != nil {
		return report(formatter, ErrCodeGeneric, ExitFailure, fmt.Sprintf("failed to render plan: %v", err), err)
	}

	recordPlan(ctx, logger, opts.journalPath(cfg), cfg, snapshot, digest)

	return render(formatter, cfg, snapshot, digest)
}

// recordPlan writes the plan to the journal. Failures are logged and never
// fail the command.
func recordPlan(ctx context.Context, logger *zap.Logger, path string, cfg *config.Config, snapshot plan.Snapshot, digest string) {
	if path == "" {
		return
	}
	logger = logger.With(zap.String("journal", path))

	data, err := snapshot.Canonical()
	if err != nil {
		logger.Warn("plan not recorded", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("plan not recorded", zap.Error(err))
		return
	}
	st, err := store.Open(path)
	if err != nil {
		logger.Warn("plan not recorded", zap.Error(err))
		return
	}
	defer st.Close()

	err = st.RecordPlan(ctx, store.PlanEntry{
		RunID:        cfg.RunID,
		ConfigFile:   cfg.ConfigFile,
		PackageName:  cfg.PackageName,
		ProjectCount: len(snapshot.Projects),
		Digest:       digest,
		Plan:         string(data),
	})
	if err != nil {
		logger.Warn("plan not recorded", zap.Error(err))
		return
	}
	logger.Debug("plan recorded", zap.String("digest", digest))
}

func (o *RootOptions) getwd() (string, error) {
	if o.Getwd != nil {
		return o.Getwd()
	}
	return os.Getwd()
}

// defaultConfigFile is .multi-tester.yml in the working directory.
func (o *RootOptions) defaultConfigFile() string {
	wd, err := o.getwd()
	if err != nil {
		return config.DefaultFileName
	}
	return filepath.Join(wd, config.DefaultFileName)
}

// journalPath returns the journal location for cfg, or "" when disabled.
func (o *RootOptions) journalPath(cfg *config.Config) string {
	if o.historySet {
		return o.History
	}
	return filepath.Join(filepath.Dir(cfg.ConfigFile), HistoryFile)
}

// PlanSummary is the result of the root command.
type PlanSummary struct {
	RunID            string   `json:"run_id"`
	ConfigFile       string   `json:"config_file"`
	PackageName      string   `json:"package_name"`
	ProjectDirectory string   `json:"project_directory"`
	Projects         []string `json:"projects"`
	Added            []string `json:"added,omitempty"`
	Digest           string   `json:"digest"`
}

// RenderText prints the summary for humans.
func (s PlanSummary) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Package:   %s\n", s.PackageName)
	fmt.Fprintf(w, "Directory: %s\n", s.ProjectDirectory)
	fmt.Fprintf(w, "Config:    %s\n", s.ConfigFile)
	if len(s.Added) > 0 {
		fmt.Fprintf(w, "Added:     %s\n", strings.Join(s.Added, ", "))
	}
	fmt.Fprintf(w, "Projects (%d):\n", len(s.Projects))
	for _, id := range s.Projects {
		fmt.Fprintf(w, "  - %s\n", id)
	}
}

func renderSummary(f *OutputFormatter, cfg *config.Config, snapshot plan.Snapshot, digest string) error {
	summary := PlanSummary{
		RunID:            cfg.RunID,
		ConfigFile:       cfg.ConfigFile,
		PackageName:      cfg.PackageName,
		ProjectDirectory: cfg.ProjectDirectory,
		Projects:         make([]string, 0, len(snapshot.Projects)),
		Added:            cfg.Adds,
		Digest:           digest,
	}
	for _, p := range snapshot.Projects {
		summary.Projects = append(summary.Projects, p.ID)
	}
	return f.SuccessWithRun(cfg.RunID, summary)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
