package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ScratchCheck verifies the local scratch directory exists and is writable.
type ScratchCheck struct {
	Dir string
}

func (s ScratchCheck) Ready(ctx context.Context) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("scratch dir unavailable: %w", err)
	}
	probe := filepath.Join(s.Dir, ".healthz")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("scratch dir not writable: %w", err)
	}
	os.Remove(probe)
	return nil
}

// LibraryCheck verifies the library mount is present.
type LibraryCheck struct {
	Dir string
}

func (l LibraryCheck) Ready(ctx context.Context) error {
	fi, err := os.Stat(l.Dir)
	if err != nil {
		return fmt.Errorf("library dir unavailable: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("library path is not a directory: %s", l.Dir)
	}
	return nil
}
