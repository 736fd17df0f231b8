// pkg/download/download.go - HTTPS artifact downloads for bootstrap staging.

package download

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/windowsadmins/managedwinget/pkg/logging"
	"github.com/windowsadmins/managedwinget/pkg/retry"
)

// httpClient is abstracted for testing. No client timeout is set: the
// msixbundle is large and downloads block until complete or the transport
// gives up.
var httpClient = &http.Client{}

// DownloadFile fetches url into dest, creating parent directories as needed.
// Transient failures are retried three times with backoff.
func DownloadFile(url, dest string) error {
	if url == "" {
		return fmt.Errorf("invalid parameters: url cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory structure: %w", err)
	}

	configRetry := retry.RetryConfig{MaxRetries: 3, InitialInterval: time.Second, Multiplier: 2.0}
	return retry.Retry(configRetry, func() error {
		logging.Info("Starting download", "url", url, "destination", dest)

		out, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("failed to open destination file: %w", err)
		}
		defer out.Close()

		resp, err := httpClient.Get(url)
		if err != nil {
			return fmt.Errorf("failed to perform HTTP request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected HTTP status code: %d", resp.StatusCode)
		}

		if _, err = io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("failed to write downloaded data: %w", err)
		}

		logging.Info("Download completed successfully", "file", dest)
		return nil
	})
}
