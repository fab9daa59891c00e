package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubCheck struct {
	err error
}

func (s stubCheck) Ready(ctx context.Context) error { return s.err }

func TestLivenessAlwaysHealthy(t *testing.T) {
	t.Parallel()
	c := NewChecker(nil)
	if resp := c.Liveness(context.Background()); !resp.IsHealthy() {
		t.Error("liveness should always report healthy")
	}
}

func TestReadinessAllHealthy(t *testing.T) {
	t.Parallel()
	c := NewChecker(map[string]ReadinessChecker{
		"scratch": stubCheck{},
		"library": stubCheck{},
	})
	resp := c.Readiness(context.Background())
	if !resp.IsHealthy() {
		t.Errorf("readiness = %+v, want healthy", resp)
	}
	if len(resp.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(resp.Checks))
	}
}

func TestReadinessFailingCheck(t *testing.T) {
	t.Parallel()
	c := NewChecker(map[string]ReadinessChecker{
		"scratch": stubCheck{},
		"library": stubCheck{err: errors.New("mount gone")},
	})
	resp := c.Readiness(context.Background())
	if resp.IsHealthy() {
		t.Error("readiness should fail when a check fails")
	}
	if got := resp.Checks["library"].Message; got != "mount gone" {
		t.Errorf("check message = %q", got)
	}
}

func TestReadinessShuttingDown(t *testing.T) {
	t.Parallel()
	c := NewChecker(map[string]ReadinessChecker{"scratch": stubCheck{}})
	c.SetShuttingDown()
	resp := c.Readiness(context.Background())
	if resp.IsHealthy() {
		t.Error("readiness should fail while shutting down")
	}
	if _, ok := resp.Checks["shutdown"]; !ok {
		t.Error("expected shutdown check in response")
	}
}

func TestScratchCheck(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "scratch")
	if err := (ScratchCheck{Dir: dir}).Ready(context.Background()); err != nil {
		t.Errorf("scratch check on creatable dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".healthz")); !os.IsNotExist(err) {
		t.Error("probe file left behind")
	}
}

func TestLibraryCheck(t *testing.T) {
	t.Parallel()
	if err := (LibraryCheck{Dir: t.TempDir()}).Ready(context.Background()); err != nil {
		t.Errorf("library check on existing dir: %v", err)
	}
	if err := (LibraryCheck{Dir: "/definitely/not/mounted"}).Ready(context.Background()); err == nil {
		t.Error("library check should fail for a missing dir")
	}
}
