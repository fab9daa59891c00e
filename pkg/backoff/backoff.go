// Package backoff computes retry delays.
package backoff

import (
	"math"
	"time"
)

// Policy describes an exponential retry schedule.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Default is the schedule used by the service's retry loops.
var Default = Policy{
	Initial: 100 * time.Millisecond,
	Max:     5 * time.Second,
	Factor:  2.0,
}

// Delay returns the wait before the given retry. Attempt 1 waits Initial;
// each further attempt multiplies the wait by Factor, capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = Default.Initial
	}
	ceil := p.Max
	if ceil <= 0 {
		ceil = Default.Max
	}
	factor := p.Factor
	if factor <= 1 {
		factor = Default.Factor
	}

	if attempt < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(factor, float64(attempt-1))
	if d > float64(ceil) {
		d = float64(ceil)
	}
	return time.Duration(d)
}
