package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines exponential backoff parameters.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// Delay returns the clamped delay for a given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if d <= 0 {
		d = base
	}
	return d
}

// Jittered returns Delay(attempt) spread by +/- 20% so rescheduled
// drains do not line up against a recovering backend.
func (p Policy) Jittered(attempt int) time.Duration {
	d := p.Delay(attempt)
	j := time.Duration(float64(d) * 0.2)
	if j <= 0 {
		return d
	}
	return d - j + time.Duration(rand.Int63n(int64(2*j)))
}
