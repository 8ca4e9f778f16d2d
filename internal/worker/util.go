package worker

import (
	"sync/atomic"
	"time"
)

const shutdownPollInterval = 100 * time.Millisecond

// sleepUnlessShutdown sleeps for d in small increments so a concurrent
// shutdown is observed within shutdownPollInterval instead of the full
// duration.
func sleepUnlessShutdown(shutdown *atomic.Bool, d time.Duration) {
	deadline := time.Now().Add(d)
	for !shutdown.Load() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > shutdownPollInterval {
			remaining = shutdownPollInterval
		}
		time.Sleep(remaining)
	}
}
