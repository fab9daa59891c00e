// Package testutil provides polling helpers for asynchronous tests.
package testutil

import (
	"testing"
	"time"
)

// pollInterval is how often Eventually re-checks the condition.
const pollInterval = 10 * time.Millisecond

// Eventually polls until condition returns true or timeout elapses.
// Returns true if the condition was met.
func Eventually(tb testing.TB, timeout time.Duration, condition func() bool) bool {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(pollInterval)
	}
	return condition()
}

// MustEventually polls until condition returns true, failing the test on timeout.
func MustEventually(tb testing.TB, timeout time.Duration, condition func() bool) {
	tb.Helper()
	if !Eventually(tb, timeout, condition) {
		tb.Fatal("timed out waiting for condition")
	}
}
