// Package plan renders a resolved configuration as a stable, canonical
// JSON document and fingerprints it.
//
// Projects are kept as a list so their execution order survives the key
// sorting of canonical JSON.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/multitester/internal/config"
)

// Domain separates plan digests from any other hash of the same bytes.
const Domain = "multitester/plan/v1"

// Snapshot is the serializable view of a config.Config.
type Snapshot struct {
	ConfigFile       string
	ProjectDirectory string
	ComposerFile     string
	PackageName      string
	Executor         string
	Verbose          bool
	Quiet            bool
	Adds             []string
	Settings         any
	Projects         []Project
}

// Project is one ordered project entry of a Snapshot.
type Project struct {
	ID         string
	Definition any
}

// FromConfig builds a Snapshot of cfg.
func FromConfig(cfg *config.Config) (Snapshot, error) {
	settings, err := cfg.Settings.Interface()
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings: %w", err)
	}
	if settings == nil {
		settings = map[string]any{}
	}

	s := Snapshot{
		ConfigFile:       cfg.ConfigFile,
		ProjectDirectory: cfg.ProjectDirectory,
		ComposerFile:     cfg.ComposerFile,
		PackageName:      cfg.PackageName,
		Executor:         cfg.Executor,
		Verbose:          cfg.Verbose,
		Quiet:            cfg.Quiet,
		Adds:             append([]string{}, cfg.Adds...),
		Settings:         settings,
	}

	for _, p := range cfg.ProjectList() {
		def, err := p.Definition.Interface()
		if err != nil {
			return Snapshot{}, fmt.Errorf("project %q: %w", p.ID, err)
		}
		s.Projects = append(s.Projects, Project{ID: p.ID, Definition: def})
	}

	return s, nil
}

// Map converts the snapshot into the generic form accepted by
// MarshalCanonical.
func (s Snapshot) Map() map[string]any {
	projects := make([]any, len(s.Projects))
	for i, p := range s.Projects {
		projects[i] = map[string]any{
			"id":         p.ID,
			"definition": normalize(p.Definition),
		}
	}

	return map[string]any{
		"config_file":       s.ConfigFile,
		"project_directory": s.ProjectDirectory,
		"composer_file":     s.ComposerFile,
		"package_name":      s.PackageName,
		"executor":          s.Executor,
		"flags": map[string]any{
			"verbose": s.Verbose,
			"quiet":   s.Quiet,
		},
		"adds":     s.Adds,
		"settings": normalize(s.Settings),
		"projects": projects,
	}
}

// Canonical returns the canonical JSON encoding of the snapshot.
func (s Snapshot) Canonical() ([]byte, error) {
	return MarshalCanonical(s.Map())
}

// Digest returns the hex SHA-256 of the canonical encoding, domain
// separated by Domain.
func (s Snapshot) Digest() (string, error) {
	data, err := s.Canonical()
	if err != nil {
		return "", err
	}
	return DigestBytes(data), nil
}

// DigestBytes hashes canonical plan bytes.
// Format: SHA256(Domain + 0x00 + data)
func DigestBytes(data []byte) string {
	h := sha256.New()
	h.Write([]byte(Domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// normalize rewrites decoded YAML values into types MarshalCanonical
// accepts. Mappings with non-string keys get their keys formatted.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case float32:
		return float64(val)
	case int32:
		return int64(val)
	case uint:
		return uint64(val)
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}
