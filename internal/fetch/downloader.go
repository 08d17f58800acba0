// Package fetch downloads package files from remote repositories.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrDownload is wrapped by every download failure
var ErrDownload = errors.New("download failed")

// Downloader fetches the resource at url into dest
type Downloader interface {
	Fetch(ctx context.Context, url, dest string) error
}

// HTTPDownloader downloads over HTTP(S)
type HTTPDownloader struct {
	Client    *http.Client
	UserAgent string
}

func (d HTTPDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}

	return &http.Client{Timeout: 60 * time.Second}
}

// Fetch writes the response body to a temporary file next to dest and
// renames it into place, so dest is either complete or absent
func (d HTTPDownloader) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, url, err)
	}

	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", ErrDownload, url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, url, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s: empty response", ErrDownload, url)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}

	return nil
}
