// Package downloads resolves local paths of versioned data and model
// downloads.
//
// A Config is built once at startup from the environment and the download
// manifest and is never modified afterwards:
//
//	cfg, err := downloads.FromEnv(logger)
//	if err != nil {
//	    return err
//	}
//	path, err := cfg.GetPath("data_curated", "curated_training_data.csv")
//	if downloads.IsMissing(err) {
//	    fmt.Fprintln(os.Stderr, err) // tells the user how to fetch it
//	}
package downloads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
)

// Environment variables read by FromEnv.
const (
	EnvDataDir        = "MHCFLURRY_DATA_DIR"
	EnvCurrentRelease = "MHCFLURRY_DOWNLOADS_CURRENT_RELEASE"
	EnvDownloadsDir   = "MHCFLURRY_DOWNLOADS_DIR"
)

// EnvironmentVariables lists every variable that affects a Config.
var EnvironmentVariables = []string{EnvDataDir, EnvCurrentRelease, EnvDownloadsDir}

// dataLayoutVersion changes whenever the layout of the data directory
// changes incompatibly.
const dataLayoutVersion = "4"

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Config is the resolved downloads location.
type Config struct {
	downloadsDir string
	release      string
	manifest     *Manifest
}

// FromEnv resolves the configuration from the process environment and the
// embedded manifest.
func FromEnv(logger *zap.Logger) (*Config, error) {
	m, err := DefaultManifest()
	if err != nil {
		return nil, err
	}
	return NewConfig(m, os.LookupEnv, logger)
}

// NewConfig resolves the downloads directory.
//
// An explicit downloads directory wins and leaves the release unset.
// Otherwise the release comes from the environment or the manifest, and
// the directory is <data dir>/<release>, with the data directory defaulting
// to a per-user location.
func NewConfig(m *Manifest, lookup LookupFunc, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}

	cfg := &Config{manifest: m}

	if dir := env(lookup, EnvDownloadsDir); dir != "" {
		cfg.downloadsDir = dir
		logger.Debug("configured downloads dir", zap.String("dir", dir))
		return cfg, nil
	}

	cfg.release = env(lookup, EnvCurrentRelease)
	if cfg.release == "" {
		cfg.release = m.CurrentRelease
	}

	rel, ok := m.Release(cfg.release)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelease, cfg.release)
	}
	if rel.CompatibilityVersion != m.CurrentCompatibilityVersion {
		logger.Warn("downloads are not compatible with this version of the code",
			zap.String("release", cfg.release),
			zap.Int("release_compatibility", rel.CompatibilityVersion),
			zap.Int("code_compatibility", m.CurrentCompatibilityVersion))
	}

	dataDir := env(lookup, EnvDataDir)
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	cfg.downloadsDir = filepath.Join(dataDir, cfg.release)

	logger.Debug("configured downloads dir",
		zap.String("dir", cfg.downloadsDir),
		zap.String("release", cfg.release))
	return cfg, nil
}

// DefaultDataDir is the per-user data directory used when none is set.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "mhcflurry", dataLayoutVersion)
}

func env(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// DownloadsDir is the directory holding one subdirectory per download.
func (c *Config) DownloadsDir() string {
	return c.downloadsDir
}

// CurrentRelease is the selected release, or "" when the downloads
// directory was set explicitly.
func (c *Config) CurrentRelease() string {
	return c.release
}

// Manifest returns the manifest the configuration was built from.
func (c *Config) Manifest() *Manifest {
	return c.manifest
}

// GetPath returns the local path of filename inside the named download and
// fails with a *MissingError if it does not exist.
func (c *Config) GetPath(name, filename string) (string, error) {
	return c.Path(name, filename, true)
}

// Path returns the local path of filename inside the named download. With
// testExists unset the path is returned whether or not it exists.
func (c *Config) Path(name, filename string, testExists bool) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	path := filepath.Join(c.downloadsDir, name, filename)
	if !testExists {
		return path, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return path, &MissingError{Name: name, Path: path}
		}
		return path, fmt.Errorf("downloads: stat %s: %w", path, err)
	}
	return path, nil
}

// Download is one entry of the current release and whether it is present
// locally.
type Download struct {
	DownloadInfo
	Downloaded bool
}

// CurrentReleaseDownloads lists the downloads of the selected release in
// manifest order.
func (c *Config) CurrentReleaseDownloads() ([]Download, error) {
	version := c.release
	if version == "" {
		version = c.manifest.CurrentRelease
	}
	rel, ok := c.manifest.Release(version)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelease, version)
	}

	out := make([]Download, 0, len(rel.Downloads))
	for _, d := range rel.Downloads {
		_, err := os.Stat(filepath.Join(c.downloadsDir, d.Name))
		out = append(out, Download{DownloadInfo: d, Downloaded: err == nil})
	}
	return out, nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
