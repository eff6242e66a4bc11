package exchange

import (
	"context"
	"log"
	"time"

	"github.com/jpillora/backoff"
)

const maxReadAttempts = 4

// withRetry runs an idempotent read against the exchange, backing off
// between attempts. It must never wrap order placement.
func withRetry(ctx context.Context, op func() error) error {
	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= maxReadAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxReadAttempts {
			break
		}

		wait := b.Duration()
		log.Printf("⚠️ Exchange read failed (attempt %d/%d), retrying in %v: %v",
			attempt, maxReadAttempts, wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
