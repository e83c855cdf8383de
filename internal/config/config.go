// Package config assembles the resolved multi-tester configuration from the
// parsed command line, the test-plan file and the package metadata file.
//
// Assembly runs once per process, in a fixed order:
//
//  1. pick the test-plan path (command line, else the default)
//  2. append --add entries to it
//  3. load it and split it into settings and projects
//  4. resolve the project directory next to the test plan
//  5. load composer.json there and read the package name
//
// Any failure stops assembly; there is no partial Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/multitester/internal/args"
	"github.com/roach88/multitester/internal/filedoc"
	"github.com/roach88/multitester/internal/manifest"
)

const (
	// DefaultFileName is the test plan looked up when none is given.
	DefaultFileName = ".multi-tester.yml"

	// DefaultExecutor names the command runner handed to the engine.
	DefaultExecutor = "shell"

	keyConfig    = "config"
	keyProjects  = "projects"
	keyDirectory = "directory"
)

// settingsKeys are the top-level keys read as settings when the test plan
// has no "config" block.
var settingsKeys = []string{keyDirectory}

// Options are the inputs of Assemble.
type Options struct {
	// DefaultConfigFile is used when no positional argument names a file.
	DefaultConfigFile string

	Arguments args.Arguments

	// Logger receives debug output; nil disables logging.
	Logger *zap.Logger
}

// Config is the resolved configuration. It is not modified after Assemble
// returns.
type Config struct {
	RunID string

	ConfigFile string
	Document   *filedoc.Document

	// Settings is the "config" block, or the recognized settings keys
	// lifted from the top level.
	Settings *filedoc.Value

	// Projects maps project ids to definitions in file order.
	Projects *filedoc.Value

	ProjectDirectory string
	ComposerFile     string
	Metadata         *filedoc.Document
	PackageName      string

	Verbose  bool
	Quiet    bool
	Adds     []string
	Executor string
}

// Project is one entry of the test plan.
type Project struct {
	ID         string
	Definition *filedoc.Value
}

// Assemble builds the resolved configuration.
func Assemble(ctx context.Context, opts Options) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := &Config{
		RunID:    uuid.NewString(),
		Verbose:  opts.Arguments.Verbose,
		Quiet:    opts.Arguments.Quiet,
		Adds:     append([]string(nil), opts.Arguments.Adds...),
		Executor: DefaultExecutor,
	}
	logger = logger.With(zap.String("run_id", cfg.RunID))

	cfg.ConfigFile = opts.DefaultConfigFile
	if path, ok := opts.Arguments.ConfigPath(); ok {
		cfg.ConfigFile = path
	}
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = DefaultFileName
	}
	logger.Debug("resolved test plan", zap.String("path", cfg.ConfigFile))

	if err := AppendProjects(cfg.ConfigFile, cfg.Adds); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Kind: ErrConfigNotFound, Path: cfg.ConfigFile, Err: err}
		}
		return nil, &Error{Kind: ErrPlanUnreadable, Path: cfg.ConfigFile, Err: fmt.Errorf("append projects: %w", err)}
	}
	if len(cfg.Adds) > 0 {
		logger.Debug("appended projects", zap.Strings("ids", cfg.Adds))
	}

	if _, err := os.Stat(cfg.ConfigFile); err != nil {
		return nil, &Error{Kind: ErrConfigNotFound, Path: cfg.ConfigFile}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := cfg.loadProjects(logger); err != nil {
		return nil, err
	}

	if err := cfg.resolveDirectory(); err != nil {
		return nil, err
	}
	logger.Debug("resolved project directory", zap.String("directory", cfg.ProjectDirectory))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := cfg.loadMetadata(); err != nil {
		return nil, err
	}
	logger.Debug("loaded package metadata",
		zap.String("package", cfg.PackageName),
		zap.Int("projects", cfg.Projects.Len()),
	)

	return cfg, nil
}

// loadProjects reads the test plan and separates settings from projects.
func (c *Config) loadProjects(logger *zap.Logger) error {
	doc, err := filedoc.Load(c.ConfigFile)
	if err != nil {
		return &Error{Kind: ErrPlanUnreadable, Path: c.ConfigFile, Err: err}
	}
	c.Document = doc
	root := doc.Root()

	if root.Kind() == filedoc.KindMapping && root.Has(keyConfig) {
		c.Settings = root.Get(keyConfig)
		root.Remove(keyConfig)
		logger.Debug("settings read from config block")
	} else {
		c.Settings = root.Take(settingsKeys...)
		logger.Debug("settings read from top level")
	}

	c.Projects = root
	if root.Has(keyProjects) {
		c.Projects = root.Get(keyProjects)
	}

	switch c.Projects.Kind() {
	case filedoc.KindMapping, filedoc.KindSequence, filedoc.KindNull:
		return nil
	default:
		return &Error{
			Kind: ErrPlanUnreadable,
			Path: c.ConfigFile,
			Err:  fmt.Errorf("projects must be a mapping or a list, got %s", c.Projects.Kind()),
		}
	}
}

// resolveDirectory derives the project directory from the test plan's
// location and the optional "directory" setting.
func (c *Config) resolveDirectory() error {
	abs, err := filepath.Abs(c.ConfigFile)
	if err != nil {
		return &Error{Kind: ErrConfigNotFound, Path: c.ConfigFile, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return &Error{Kind: ErrConfigNotFound, Path: c.ConfigFile, Err: err}
	}
	c.ConfigFile = resolved

	c.ProjectDirectory = joinDirectory(filepath.Dir(resolved), c.Directory())
	c.ComposerFile = filepath.Join(c.ProjectDirectory, manifest.FileName)
	return nil
}

// joinDirectory anchors dir under base. Leading separators of dir are
// dropped, so absolute values are also resolved below base.
func joinDirectory(base, dir string) string {
	if dir == "" {
		return base
	}
	joined := strings.TrimRight(base, `/\`) + string(filepath.Separator) + strings.TrimLeft(dir, `/\`)
	return filepath.Clean(joined)
}

func (c *Config) loadMetadata() error {
	info, err := os.Stat(c.ComposerFile)
	if err != nil || info.IsDir() {
		return &Error{Kind: ErrDirectoryMisconfigured, Path: c.ComposerFile}
	}

	doc, err := filedoc.Load(c.ComposerFile)
	if err != nil {
		return &Error{Kind: ErrPlanUnreadable, Path: c.ComposerFile, Err: err}
	}
	c.Metadata = doc

	name, err := manifest.PackageName(doc)
	if err != nil {
		return &Error{Kind: ErrMissingPackageName, Path: c.ComposerFile, Err: err}
	}
	c.PackageName = name
	return nil
}

// Directory returns the "directory" setting, or "" when unset.
func (c *Config) Directory() string {
	dir, ok := c.Settings.Get(keyDirectory).String()
	if !ok {
		return ""
	}
	return dir
}

// ProjectList returns the projects in test-plan order. List entries that
// are plain strings use the string as id.
func (c *Config) ProjectList() []Project {
	entries := c.Projects.Entries()
	projects := make([]Project, 0, len(entries))

	for _, e := range entries {
		if c.Projects.Kind() == filedoc.KindSequence {
			if id, ok := e.Value.String(); ok {
				projects = append(projects, Project{ID: id})
				continue
			}
		}
		projects = append(projects, Project{ID: e.Key, Definition: e.Value})
	}
	return projects
}

// ProjectIDs returns the ids of ProjectList.
func (c *Config) ProjectIDs() []string {
	projects := c.ProjectList()
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return ids
}

// String summarizes the configuration for log lines.
func (c *Config) String() string {
	return fmt.Sprintf("%s (%d projects) in %s", c.PackageName, c.Projects.Len(), c.ProjectDirectory)
}
