package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy shapes the backoff between ledger sync attempts. Jitter is a
// fraction of the computed delay (0 disables it); spreading retries keeps
// queued tasks from hammering the Sheets API in lockstep after an outage.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
}

// DefaultRetryPolicy is what the ledger worker runs with unless configured
// otherwise: five attempts, 2s doubling up to a one-minute cap, 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		Jitter:        0.1,
	}
}

// withDefaults fills zero fields from DefaultRetryPolicy. Jitter stays as
// given; zero means none.
func (r RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if r.MaxRetries <= 0 {
		r.MaxRetries = def.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = def.InitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = def.MaxDelay
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = def.BackoffFactor
	}
	return r
}

// NextDelay returns the backoff before the given attempt (1-based): geometric
// growth clamped at MaxDelay, then widened by ±Jitter.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	if d > r.MaxDelay || d <= 0 {
		d = r.MaxDelay
	}

	if r.Jitter > 0 {
		span := float64(d) * r.Jitter
		d += time.Duration(rand.Float64()*2*span - span)
	}
	if d < r.InitialDelay/2 {
		d = r.InitialDelay / 2
	}
	return d
}
