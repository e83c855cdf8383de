package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/multitester/internal/args"
	"github.com/roach88/multitester/internal/filedoc"
	"github.com/roach88/multitester/internal/manifest"
	"github.com/roach88/multitester/internal/testutil"
)

// tempDir returns a temp directory with symlinks resolved so paths compare
// equal to the ones Assemble produces.
func tempDir(t *testing.T) string {
	t.Helper()
	return testutil.NewWorkspace(t).Root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func assemble(t *testing.T, argv ...string) (*Config, error) {
	t.Helper()
	return Assemble(context.Background(), Options{
		Arguments: args.Parse(append([]string{"multi-tester"}, argv...)),
		Logger:    zaptest.NewLogger(t),
	})
}

func TestAssemble_FlatPlanWithDirectory(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, ".multi-tester.yml")
	writeFile(t, plan, `
directory: ./pkg
demo/project:
  install: composer install
  script: phpunit
`)
	writeFile(t, filepath.Join(dir, "pkg", "composer.json"), `{"name": "demo/project"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)

	assert.Equal(t, plan, cfg.ConfigFile)
	assert.Equal(t, "demo/project", cfg.PackageName)
	assert.Equal(t, filepath.Join(dir, "pkg"), cfg.ProjectDirectory)
	assert.Equal(t, filepath.Join(dir, "pkg", "composer.json"), cfg.ComposerFile)
	assert.Equal(t, []string{"demo/project"}, cfg.Projects.Keys())
	assert.Equal(t, []string{"directory"}, cfg.Settings.Keys())
	assert.Equal(t, "./pkg", cfg.Directory())

	script, ok := cfg.Projects.Get("demo/project").Get("script").String()
	require.True(t, ok)
	assert.Equal(t, "phpunit", script)

	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, DefaultExecutor, cfg.Executor)
	assert.NotNil(t, cfg.Metadata)
}

func TestAssemble_ConfigBlockBecomesSettings(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, `
config:
  directory: lib
  color: true
projects:
  a/a:
    install: default
  b/b:
    script: default
`)
	writeFile(t, filepath.Join(dir, "lib", "composer.json"), `{"name": "x/lib"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"directory", "color"}, cfg.Settings.Keys())
	assert.Equal(t, []string{"a/a", "b/b"}, cfg.Projects.Keys())
	assert.False(t, cfg.Document.Root().Has("config"))
	assert.Equal(t, filepath.Join(dir, "lib"), cfg.ProjectDirectory)
}

func TestAssemble_ConfigBlockWithoutProjectsKey(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, `
z/z: {}
config:
  directory: lib
a/a: {}
`)
	writeFile(t, filepath.Join(dir, "lib", "composer.json"), `{"name": "x/lib"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"z/z", "a/a"}, cfg.Projects.Keys())
	assert.Equal(t, []string{"directory"}, cfg.Settings.Keys())
}

func TestAssemble_NoDirectoryUsesPlanDirectory(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.json")
	writeFile(t, plan, `{"b/b": {"install": "default"}, "a/a": {"script": "default"}}`)
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectDirectory)
	assert.Equal(t, []string{"b/b", "a/a"}, cfg.ProjectIDs())
	assert.Equal(t, 0, cfg.Settings.Len())
}

func TestAssemble_AbsoluteDirectoryIsAnchoredUnderPlan(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "directory: /nested/pkg/\n")
	writeFile(t, filepath.Join(dir, "nested", "pkg", "composer.json"), `{"name": "x/nested"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "pkg"), cfg.ProjectDirectory)
}

func TestAssemble_AddAppendsBeforeLoading(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "first/one:\n  install: composer install\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := assemble(t, "--add", "foo/bar", "--add=baz/qux", plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"first/one", "foo/bar", "baz/qux"}, cfg.ProjectIDs())
	assert.Equal(t, []string{"foo/bar", "baz/qux"}, cfg.Adds)
	for _, id := range []string{"foo/bar", "baz/qux"} {
		def := cfg.Projects.Get(id)
		install, _ := def.Get("install").String()
		script, _ := def.Get("script").String()
		assert.Equal(t, "default", install, id)
		assert.Equal(t, "default", script, id)
	}

	data, err := os.ReadFile(plan)
	require.NoError(t, err)
	assert.Equal(t,
		"first/one:\n  install: composer install\n"+
			"\nfoo/bar:\n  install: default\n  script: default\n"+
			"\nbaz/qux:\n  install: default\n  script: default\n",
		string(data))
}

func TestAssemble_AddExistingProjectReplacesDefinition(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "foo/bar:\n  install: composer install\nother/pkg: {}\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := assemble(t, "--add", "foo/bar", plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"foo/bar", "other/pkg"}, cfg.ProjectIDs())
	install, _ := cfg.Projects.Get("foo/bar").Get("install").String()
	assert.Equal(t, "default", install)
}

func TestAssemble_AddCreatesMissingPlan(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "new.yml")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := assemble(t, "--add", "foo/bar", plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/bar"}, cfg.ProjectIDs())
}

func TestAssemble_DefaultConfigFile(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, DefaultFileName)
	writeFile(t, plan, "a/a: {}\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := Assemble(context.Background(), Options{
		DefaultConfigFile: plan,
		Arguments:         args.Parse([]string{"multi-tester", "-v", "-q"}),
	})
	require.NoError(t, err)

	assert.Equal(t, plan, cfg.ConfigFile)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.Quiet)
}

func TestAssemble_ConfigNotFound(t *testing.T) {
	missing := filepath.Join(tempDir(t), "missing.yml")

	_, err := assemble(t, missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
	assert.Contains(t, err.Error(), "multi-tester config file '"+missing+"' not found")

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, missing, cfgErr.Path)
}

func TestAssemble_AddIntoMissingDirectory(t *testing.T) {
	missing := filepath.Join(tempDir(t), "no", "such", "plan.yml")

	_, err := assemble(t, "--add", "foo/bar", missing)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestAssemble_DirectoryMisconfigured(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "directory: nowhere\na/a: {}\n")

	_, err := assemble(t, plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirectoryMisconfigured))
	assert.False(t, errors.Is(err, ErrConfigNotFound))
	assert.Contains(t, err.Error(), "'directory'")
}

func TestAssemble_ComposerPathIsDirectory(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "a/a: {}\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "composer.json"), 0755))

	_, err := assemble(t, plan)
	assert.True(t, errors.Is(err, ErrDirectoryMisconfigured))
}

func TestAssemble_MissingPackageName(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "a/a: {}\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"description": "nameless"}`)

	_, err := assemble(t, plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingPackageName))
	assert.True(t, errors.Is(err, manifest.ErrInvalid))
	assert.Contains(t, err.Error(), "must contain a 'name' entry")
}

func TestAssemble_UnparsablePlan(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "a/a: [\n")

	_, err := assemble(t, plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlanUnreadable))

	var parseErr *filedoc.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestAssemble_ScalarProjects(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "projects: everything\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	_, err := assemble(t, plan)
	assert.True(t, errors.Is(err, ErrPlanUnreadable))
}

func TestAssemble_ProjectsList(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "projects:\n  - a/a\n  - b/b: {install: default}\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)

	projects := cfg.ProjectList()
	require.Len(t, projects, 2)
	assert.Equal(t, "a/a", projects[0].ID)
	assert.Nil(t, projects[0].Definition)
	assert.Equal(t, "1", projects[1].ID)
	assert.Equal(t, filedoc.KindMapping, projects[1].Definition.Kind())
}

func TestAssemble_CanceledContext(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "a/a: {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Assemble(ctx, Options{Arguments: args.Parse([]string{"multi-tester", plan})})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinDirectory(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "srv", "plan")

	assert.Equal(t, base, joinDirectory(base, ""))
	assert.Equal(t, filepath.Join(base, "pkg"), joinDirectory(base, "./pkg"))
	assert.Equal(t, filepath.Join(base, "pkg"), joinDirectory(base+string(filepath.Separator), "//pkg"))
	assert.Equal(t, filepath.Join(base, "a", "b"), joinDirectory(base, "a/b/"))
	assert.Equal(t, filepath.Join(string(filepath.Separator), "srv", "other"), joinDirectory(base, "../other"))
}

func TestConfigString(t *testing.T) {
	dir := tempDir(t)
	plan := filepath.Join(dir, "plan.yml")
	writeFile(t, plan, "a/a: {}\nb/b: {}\n")
	writeFile(t, filepath.Join(dir, "composer.json"), `{"name": "x/root"}`)

	cfg, err := assemble(t, plan)
	require.NoError(t, err)
	assert.Equal(t, "x/root (2 projects) in "+dir, cfg.String())
}
