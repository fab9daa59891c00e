// Package config provides configuration loading from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ServiceConfig holds configuration for the romdock service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	WebhookSecret     string // HMAC key for signing webhook deliveries (empty disables signing)
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)

	LibraryDir   string // Root of the mounted game library
	ScratchDir   string // Local fast storage for staging and codec work
	KeysDir      string // Where prod.keys/title.keys live on the library
	LocalKeysDir string // Where staged keys are placed for the tools

	ArchiveExts map[string]bool // Extensions treated as archives
	GameExts    map[string]bool // Extensions treated as game files

	MaxNestedDepth       int           // Rounds of nested archive expansion
	ProgressPollInterval time.Duration // Poll interval for tool progress adapters
	ConfirmTimeout       time.Duration // Bounded wait before a confirmation auto-declines
	CompressRatio        float64       // Estimated output/input size ratio for size polling
	Workers              int           // Bounded worker pool size for blocking work
	SevenZipBin          string        // Binary used for 7z/rar extraction
	VerifyBin            string        // Binary used for quick-verify of game files

	CatalogURL string        // Title catalog JSON URL
	CatalogTTL time.Duration // Catalog cache lifetime
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	home, _ := os.UserHomeDir()
	libraryDir := GetEnv("LIBRARY_DIR", "/library/switch")
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		WebhookSecret:     GetSecretFile(GetEnv("WEBHOOK_SECRET_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),

		LibraryDir:   libraryDir,
		ScratchDir:   GetEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "romdock")),
		KeysDir:      GetEnv("KEYS_DIR", filepath.Join(libraryDir, ".switch")),
		LocalKeysDir: GetEnv("LOCAL_KEYS_DIR", filepath.Join(home, ".switch")),

		ArchiveExts: ParseExts(GetEnv("ARCHIVE_EXTS", ".zip,.7z,.rar")),
		GameExts:    ParseExts(GetEnv("GAME_EXTS", ".nsp,.nsz,.xci,.xcz")),

		MaxNestedDepth:       GetIntEnv("MAX_NESTED_DEPTH", 5),
		ProgressPollInterval: GetDurationEnv("PROGRESS_POLL_INTERVAL", 100*time.Millisecond),
		ConfirmTimeout:       GetDurationEnv("CONFIRM_TIMEOUT", 10*time.Minute),
		CompressRatio:        GetFloatEnv("COMPRESS_RATIO_ESTIMATE", 0.70),
		Workers:              GetIntEnv("WORKERS", 4),
		SevenZipBin:          GetEnv("SEVENZIP_BIN", "7z"),
		VerifyBin:            GetEnv("VERIFY_BIN", "nsz"),

		CatalogURL: GetEnv("CATALOG_URL", "https://raw.githubusercontent.com/blawar/titledb/master/US.en.json"),
		CatalogTTL: GetDurationEnv("CATALOG_TTL", 24*time.Hour),
	}
}

// JobScratchDir returns the isolated scratch directory for one job.
// Concurrent jobs must never share scratch storage.
func (c *ServiceConfig) JobScratchDir(jobID string) string {
	return filepath.Join(c.ScratchDir, jobID)
}

// ParseExts parses a comma-separated extension list into a lookup set.
// Extensions are normalized to lowercase with a leading dot.
func ParseExts(raw string) map[string]bool {
	exts := make(map[string]bool)
	for _, e := range strings.Split(raw, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return exts
}
