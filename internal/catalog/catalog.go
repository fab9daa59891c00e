// Package catalog resolves title IDs to display names using a downloaded
// title database, cached on local scratch storage.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"romdock/pkg/backoff"
)

const downloadAttempts = 3

// Client downloads and caches the title catalog. The cache lives at
// CachePath and is refreshed once it is older than TTL; a failed refresh
// falls back to the stale copy rather than failing the job.
type Client struct {
	URL       string
	CachePath string
	TTL       time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(url, cachePath string, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		URL:        url,
		CachePath:  cachePath,
		TTL:        ttl,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger.With("component", "catalog"),
	}
}

// Load returns the id-to-name map, keyed by uppercase title ID. A missing
// catalog that cannot be downloaded yields an empty map, not an error:
// organize degrades to skipping unidentified files.
func (c *Client) Load(ctx context.Context) (map[string]string, error) {
	if c.stale() {
		if err := c.refresh(ctx); err != nil {
			if _, statErr := os.Stat(c.CachePath); statErr != nil {
				c.Logger.Warn("catalog unavailable and no cache on disk", "error", err)
				return map[string]string{}, nil
			}
			c.Logger.Warn("catalog refresh failed, using stale cache", "error", err)
		}
	}
	return c.parseCache()
}

func (c *Client) stale() bool {
	fi, err := os.Stat(c.CachePath)
	if err != nil {
		return true
	}
	return time.Since(fi.ModTime()) > c.TTL
}

func (c *Client) refresh(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff.Default.Delay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = c.download(ctx); lastErr == nil {
			return nil
		}
		c.Logger.Warn("catalog download failed", "attempt", attempt, "error", lastErr)
	}
	return lastErr
}

func (c *Client) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	// Write to a temp file first so a torn download never replaces a good
	// cache.
	tmp, err := os.CreateTemp(filepath.Dir(c.CachePath), ".catalog-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	return os.Rename(tmp.Name(), c.CachePath)
}

// parseCache reads the catalog JSON: an object whose values each carry an
// id and a name. Malformed entries are skipped.
func (c *Client) parseCache() (map[string]string, error) {
	db := map[string]string{}
	data, err := os.ReadFile(c.CachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for _, msg := range raw {
		var item struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		// Entries can be null or otherwise malformed; skip them.
		if err := json.Unmarshal(msg, &item); err != nil {
			continue
		}
		if item.ID != "" && item.Name != "" {
			db[strings.ToUpper(item.ID)] = item.Name
		}
	}
	return db, nil
}
