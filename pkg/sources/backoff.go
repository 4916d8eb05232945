package sources

import (
	"context"
	"time"

	"tc.com/oracle-relayer/pkg/logging"
	"tc.com/oracle-relayer/pkg/metrics"
)

// DefaultStaleTimeout is the per-message idle timeout after which a WebSocket
// session is considered stale and cycled.
const DefaultStaleTimeout = 5 * time.Second

// Backoff yields the wait before the next reconnect attempt.
type Backoff interface {
	// Next returns the wait duration and advances the policy.
	Next() time.Duration
	// Reset restores the initial wait after a successful session.
	Reset()
}

type fixedBackoff struct {
	wait time.Duration
}

// NewFixedBackoff returns a policy that always waits the same duration.
func NewFixedBackoff(wait time.Duration) Backoff {
	return &fixedBackoff{wait: wait}
}

func (b *fixedBackoff) Next() time.Duration { return b.wait }
func (b *fixedBackoff) Reset()              {}

type exponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewExponentialBackoff returns a doubling policy capped at max.
func NewExponentialBackoff(initial, max time.Duration) Backoff {
	return &exponentialBackoff{initial: initial, max: max, current: initial}
}

func (b *exponentialBackoff) Next() time.Duration {
	wait := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return wait
}

func (b *exponentialBackoff) Reset() { b.current = b.initial }

// RunLoop runs one adapter session function forever, reconnecting with the
// given backoff after every fault. Sessions retry until the context is
// canceled; a fault in one loop never affects another.
func RunLoop(ctx context.Context, logger *logging.Logger, source, url string, backoff Backoff, session func(context.Context) error) {
	for {
		start := time.Now()
		err := session(ctx)
		if ctx.Err() != nil {
			return
		}
		// A session that survived for a while earned a fresh backoff.
		if time.Since(start) > time.Minute {
			backoff.Reset()
		}
		wait := backoff.Next()
		logger.Warn("source session ended, reconnecting",
			"source", source, "url", url, "error", err, "wait", wait.String())
		metrics.RecordSourceReconnect(source, url)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
