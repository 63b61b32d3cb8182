package dune

import (
	"math/rand"
	"time"
)

const (
	defaultMaxRetries = 3
	retryBackoffBase  = time.Second
	retryBackoffMax   = 16 * time.Second
)

// retryDelay returns the exponential backoff delay for the given attempt with
// ±25% jitter, capped at retryBackoffMax. Jitter spreads out the retry storms
// that follow a rate-limit window.
func retryDelay(attempt int) time.Duration {
	delay := retryBackoffBase * time.Duration(1<<uint(attempt-1))
	if delay > retryBackoffMax {
		delay = retryBackoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(delay/2))) - delay/4
	return delay + jitter
}
