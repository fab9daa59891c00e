package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()
	b := New(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.Failure()
	}
	if b.State() != Closed {
		t.Errorf("Expected closed after 2 failures, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("Expected closed breaker to allow attempts")
	}

	b.Failure()
	if b.State() != Open {
		t.Errorf("Expected open after 3 failures, got %s", b.State())
	}
	if b.Allow() {
		t.Error("Expected open breaker to block attempts")
	}
}

func TestBreaker_SuccessResets(t *testing.T) {
	t.Parallel()
	b := New(3, time.Minute)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if b.State() != Closed {
		t.Errorf("Expected closed after reset, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	t.Parallel()
	b := New(1, 10*time.Millisecond)

	b.Failure()
	if b.Allow() {
		t.Error("Expected open breaker to block before cooldown")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Error("Expected probe to be allowed after cooldown")
	}
	if b.State() != HalfOpen {
		t.Errorf("Expected half-open, got %s", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()
	b := New(5, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		b.Failure()
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("Expected probe to be allowed after cooldown")
	}

	b.Failure()
	if b.State() != Open {
		t.Errorf("Expected open after failed probe, got %s", b.State())
	}
	if b.Allow() {
		t.Error("Expected reopened breaker to block attempts")
	}
}

func TestBreaker_SuccessfulProbeCloses(t *testing.T) {
	t.Parallel()
	b := New(1, 10*time.Millisecond)

	b.Failure()
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("Expected probe to be allowed after cooldown")
	}

	b.Success()
	if b.State() != Closed {
		t.Errorf("Expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_Defaults(t *testing.T) {
	t.Parallel()
	b := New(0, 0)

	for i := 0; i < 4; i++ {
		b.Failure()
	}
	if b.State() != Closed {
		t.Error("Expected closed after 4 failures with default threshold 5")
	}
	b.Failure()
	if b.State() != Open {
		t.Error("Expected open after 5 failures with default threshold 5")
	}
}

func TestRegistry_SharesBreakersPerKey(t *testing.T) {
	t.Parallel()
	r := NewRegistry(2, time.Minute)

	a := r.For("a.example.com")
	if r.For("a.example.com") != a {
		t.Error("Expected the same breaker for repeated keys")
	}
	if r.For("b.example.com") == a {
		t.Error("Expected distinct breakers for distinct keys")
	}
}

func TestRegistry_OpenCount(t *testing.T) {
	t.Parallel()
	r := NewRegistry(1, time.Minute)

	r.For("up.example.com").Success()
	r.For("down.example.com").Failure()

	if got := r.OpenCount(); got != 1 {
		t.Errorf("Expected 1 open breaker, got %d", got)
	}
}
