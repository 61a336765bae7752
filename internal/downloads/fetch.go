package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// ErrNoURL is returned by Fetch when neither the caller nor the manifest
// gives a source for the download.
var ErrNoURL = errors.New("downloads: no url for download")

// ProgressFunc returns a writer that observes a transfer of size bytes, or
// -1 if the size is unknown.
type ProgressFunc func(size int64) io.Writer

// Fetch downloads source into the directory of the named download and
// returns the path of the written file. An empty source falls back to the
// URL in the manifest. The file is written to a temporary name first and
// renamed once complete.
func (c *Config) Fetch(ctx context.Context, client *http.Client, name, source string, progress ProgressFunc) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if source == "" {
		source = c.manifestURL(name)
	}
	if source == "" {
		return "", fmt.Errorf("%w %q", ErrNoURL, name)
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("downloads: bad url %q: %w", source, err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "", fmt.Errorf("downloads: url %q names no file", source)
	}

	dir := filepath.Join(c.downloadsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("downloads: %w", err)
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("downloads: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloads: fetch %s: %w", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloads: fetch %s: %s", source, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return "", fmt.Errorf("downloads: %w", err)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	if progress != nil {
		if pw := progress(resp.ContentLength); pw != nil {
			w = io.MultiWriter(tmp, pw)
		}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("downloads: fetch %s: %w", source, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("downloads: %w", err)
	}

	dst := filepath.Join(dir, base)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("downloads: %w", err)
	}
	return dst, nil
}

func (c *Config) manifestURL(name string) string {
	version := c.release
	if version == "" {
		version = c.manifest.CurrentRelease
	}
	rel, ok := c.manifest.Release(version)
	if !ok {
		return ""
	}
	d, _ := rel.Lookup(name)
	return d.URL
}
