package transport

import (
	"context"
	"math/rand"
	"time"

	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/protocol/session"
)

// Retry wraps a transport so Connect keeps dialing with backoff. MaxAttempts
// of zero or less retries until ctx ends.
type Retry struct {
	Transport

	backoff     session.BackoffConfig
	maxAttempts int
	rng         *rand.Rand
}

func WithRetry(t Transport, backoff session.BackoffConfig, maxAttempts int) *Retry {
	return &Retry{
		Transport:   t,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Retry) Connect(ctx context.Context, onReceive func(chunk string)) error {
	log := logging.Component("transport")
	var attempt int
	for {
		attempt++
		err := r.Transport.Connect(ctx, onReceive)
		if err == nil {
			return nil
		}
		log.Warn().Int("attempt", attempt).Err(err).Msg("connect failed")
		if !r.shouldRetry(attempt) {
			return err
		}
		if err := r.sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}
}

func (r *Retry) shouldRetry(attempt int) bool {
	if r.maxAttempts <= 0 {
		return true
	}
	return attempt < r.maxAttempts
}

func (r *Retry) sleepBackoff(ctx context.Context, attempt int) error {
	delay := session.NextBackoffDelay(r.backoff, attempt, r.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
