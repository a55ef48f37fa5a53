package google

import "time"

// RetryPolicy bounds how often a throttled request is repeated.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	Delay       time.Duration // fixed pause before each retry
}

// DefaultRetryPolicy allows three attempts two seconds apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}

// ShouldRetry reports whether another attempt follows attempt (1-based)
// that ended with status. Only OVER_QUERY_LIMIT is retried.
func (p RetryPolicy) ShouldRetry(attempt int, status string) bool {
	return status == StatusOverQueryLimit && attempt < p.MaxAttempts
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	return p
}
