package plan

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multitester/internal/config"
	"github.com/roach88/multitester/internal/filedoc"
)

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()

	doc, err := filedoc.ParseDocument("/work/.multi-tester.yml", []byte(`
directory: ./pkg
demo/project:
  install: composer install
  script: phpunit
zz/last:
  install: default
  script: default
aa/first: default
`))
	require.NoError(t, err)

	root := doc.Root()
	return &config.Config{
		RunID:            "00000000-0000-0000-0000-000000000000",
		ConfigFile:       "/work/.multi-tester.yml",
		Document:         doc,
		Settings:         root.Take("directory"),
		Projects:         root,
		ProjectDirectory: "/work/pkg",
		ComposerFile:     "/work/pkg/composer.json",
		PackageName:      "demo/project",
		Verbose:          true,
		Adds:             []string{"zz/last"},
		Executor:         config.DefaultExecutor,
	}
}

func TestFromConfig_KeepsProjectOrder(t *testing.T) {
	s, err := FromConfig(fixtureConfig(t))
	require.NoError(t, err)

	ids := make([]string, len(s.Projects))
	for i, p := range s.Projects {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"demo/project", "zz/last", "aa/first"}, ids)
	assert.Equal(t, map[string]any{"directory": "./pkg"}, s.Settings)
	assert.Equal(t, "default", s.Projects[2].Definition)
}

func TestSnapshot_Golden(t *testing.T) {
	s, err := FromConfig(fixtureConfig(t))
	require.NoError(t, err)

	data, err := s.Canonical()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "flat_plan", data)
}

func TestSnapshot_DigestIsStable(t *testing.T) {
	first, err := FromConfig(fixtureConfig(t))
	require.NoError(t, err)
	second, err := FromConfig(fixtureConfig(t))
	require.NoError(t, err)

	d1, err := first.Digest()
	require.NoError(t, err)
	d2, err := second.Digest()
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	second.Quiet = true
	d3, err := second.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestDigestBytes_DomainSeparated(t *testing.T) {
	assert.NotEqual(t, DigestBytes([]byte("{}")), DigestBytes([]byte("{} ")))
	assert.Equal(t, DigestBytes([]byte("{}")), DigestBytes([]byte("{}")))
}

func TestFromConfig_NullSettings(t *testing.T) {
	doc, err := filedoc.ParseDocument("plan.yml", []byte("config: ~\na/a: {}\n"))
	require.NoError(t, err)
	root := doc.Root()
	settings := root.Get("config")
	root.Remove("config")

	s, err := FromConfig(&config.Config{Settings: settings, Projects: root})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, s.Settings)
	require.Len(t, s.Projects, 1)
	assert.Equal(t, map[string]any{}, s.Projects[0].Definition)
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	out := normalize(map[any]any{1: float32(0.5), "t": ts, "l": []any{int32(3), uint(4)}})

	assert.Equal(t, map[string]any{
		"1": float64(0.5),
		"t": ts.String(),
		"l": []any{int64(3), uint64(4)},
	}, out)
}
