package downloads

import (
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed downloads.yml
var defaultManifest []byte

// Manifest lists the downloadable artifacts of every release.
type Manifest struct {
	CurrentRelease              string             `yaml:"current-release"`
	CurrentCompatibilityVersion int                `yaml:"current-compatibility-version"`
	Releases                    map[string]Release `yaml:"releases"`
}

// Release is one published set of downloads.
type Release struct {
	CompatibilityVersion int            `yaml:"compatibility-version"`
	Downloads            []DownloadInfo `yaml:"downloads"`
}

// DownloadInfo describes one download. URL may be empty, in which case the
// fetch command needs one on its command line.
type DownloadInfo struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url,omitempty"`
	Description string `yaml:"description,omitempty"`
	Default     bool   `yaml:"default"`
}

// DefaultManifest parses the manifest compiled into the binary.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest)
}

// ReadManifest parses a manifest from r.
func ReadManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("downloads: read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("downloads: parse manifest: %w", err)
	}
	if m.CurrentRelease == "" {
		return nil, fmt.Errorf("downloads: manifest has no current-release")
	}
	if _, ok := m.Releases[m.CurrentRelease]; !ok {
		return nil, fmt.Errorf("downloads: current release %q not in manifest", m.CurrentRelease)
	}
	for version, rel := range m.Releases {
		seen := make(map[string]struct{}, len(rel.Downloads))
		for _, d := range rel.Downloads {
			if err := validateName(d.Name); err != nil {
				return nil, fmt.Errorf("downloads: release %s: %w", version, err)
			}
			if _, dup := seen[d.Name]; dup {
				return nil, fmt.Errorf("downloads: release %s: duplicate download %q", version, d.Name)
			}
			seen[d.Name] = struct{}{}
		}
	}
	return &m, nil
}

// Release returns the named release.
func (m *Manifest) Release(version string) (Release, bool) {
	r, ok := m.Releases[version]
	return r, ok
}

// Lookup finds a download by name in a release.
func (r Release) Lookup(name string) (DownloadInfo, bool) {
	for _, d := range r.Downloads {
		if d.Name == name {
			return d, true
		}
	}
	return DownloadInfo{}, false
}
