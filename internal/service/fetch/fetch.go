// Package fetch downloads a remote driver package into the run workspace.
package fetch

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
	"strings"
	"time"
)

// defaultPackageName is used when the URL path has no usable file name.
const defaultPackageName = "package.bin"

var (
	// ErrBadHTTPStatus is returned for any response other than 200 OK.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrEmptyBody is returned when the server sent no bytes.
	ErrEmptyBody = errors.New("empty response body")
)

// IsRemote reports whether source should be downloaded rather than opened.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)

	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetcher downloads packages over HTTP(S).
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher whose requests are bounded by timeout.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Download saves rawURL into destDir and returns the local path. The file keeps
// the URL's base name so the extractor can still tell archives from executables.
func (f *Fetcher) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		name = defaultPackageName
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := f.client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", parsed.Redacted(), response.Status, ErrBadHTTPStatus)
	}

	outputFileName := filepath.Join(destDir, filepath.Base(filepath.FromSlash(name)))

	outputFile, err := os.OpenFile(outputFileName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}

	written, err := io.Copy(outputFile, response.Body)
	if closeErr := outputFile.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("download %s: %w", parsed.Redacted(), err)
	}

	if written == 0 {
		return "", fmt.Errorf("%s: %w", parsed.Redacted(), ErrEmptyBody)
	}

	return outputFileName, nil
}
